package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fastygo/powerpanel/domain"
)

func encodeRecord(record domain.SessionRecord) ([]byte, error) {
	return json.Marshal(record)
}

func decodeRecord(data []byte) (domain.SessionRecord, error) {
	var record domain.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	if !record.Valid() {
		return domain.SessionRecord{}, domain.ErrMalformedRecord
	}
	return record, nil
}

func encodeMaterial(ciphertext, key, nonce []byte) domain.CipherMaterial {
	return domain.CipherMaterial{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Key:        base64.StdEncoding.EncodeToString(key),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
	}
}

// decodeMaterial reports undecodable slots as a crypto failure: they are
// malformed input to decryption.
func decodeMaterial(material domain.CipherMaterial) (ciphertext, key, nonce []byte, err error) {
	if ciphertext, err = base64.StdEncoding.DecodeString(material.Ciphertext); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: ciphertext: %v", domain.ErrCryptoFailure, err)
	}
	if key, err = base64.StdEncoding.DecodeString(material.Key); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: key: %v", domain.ErrCryptoFailure, err)
	}
	if nonce, err = base64.StdEncoding.DecodeString(material.Nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: nonce: %v", domain.ErrCryptoFailure, err)
	}
	return ciphertext, key, nonce, nil
}
