// Package aead seals session records with a fresh key and nonce per call.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/fastygo/powerpanel/domain"
)

const (
	// KeySize is the length of every generated key in bytes.
	KeySize = 32
	// NonceSize is the length of every generated nonce in bytes.
	NonceSize = 12
)

// Algorithm names a supported AEAD construction.
type Algorithm string

const (
	AESGCM           Algorithm = "aes-256-gcm"
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// Service encrypts with single-use keys.
type Service struct {
	newAEAD func(key []byte) (cipher.AEAD, error)
	rand    io.Reader
	alg     Algorithm
}

// New returns a Service for alg. A nil random source means crypto/rand.
func New(alg Algorithm, random io.Reader) (*Service, error) {
	if random == nil {
		random = rand.Reader
	}

	s := &Service{rand: random, alg: alg}
	switch alg {
	case AESGCM, "":
		s.alg = AESGCM
		s.newAEAD = newAESGCM
	case ChaCha20Poly1305:
		s.newAEAD = chacha20poly1305.New
	default:
		return nil, fmt.Errorf("aead: unsupported algorithm %q", alg)
	}
	return s, nil
}

// Algorithm returns the construction the service uses.
func (s *Service) Algorithm() Algorithm {
	return s.alg
}

// Encrypt generates a new key and nonce and seals plaintext under them. The
// returned ciphertext carries the authentication tag.
func (s *Service) Encrypt(plaintext []byte) (ciphertext, key, nonce []byte, err error) {
	key = make([]byte, KeySize)
	if _, err = io.ReadFull(s.rand, key); err != nil {
		return nil, nil, nil, fmt.Errorf("aead: generating key: %w", err)
	}
	nonce = make([]byte, NonceSize)
	if _, err = io.ReadFull(s.rand, nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("aead: generating nonce: %w", err)
	}

	aead, err := s.newAEAD(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("aead: %w", err)
	}

	return aead.Seal(nil, nonce, plaintext, nil), key, nonce, nil
}

// Decrypt opens ciphertext. Any failure, including malformed key or nonce
// lengths, is reported as domain.ErrCryptoFailure.
func (s *Service) Decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key length %d", domain.ErrCryptoFailure, len(key))
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce length %d", domain.ErrCryptoFailure, len(nonce))
	}

	aead, err := s.newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCryptoFailure, err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCryptoFailure, err)
	}
	return plaintext, nil
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
