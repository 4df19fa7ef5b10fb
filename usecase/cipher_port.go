package usecase

// SessionCipher abstracts the authenticated encryption used to protect
// session records so use cases stay independent of the algorithm.
type SessionCipher interface {
	Encrypt(plaintext []byte) (ciphertext, key, nonce []byte, err error)
	Decrypt(ciphertext, key, nonce []byte) ([]byte, error)
}
