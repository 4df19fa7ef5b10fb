package domain

import "time"

// SessionRecord is the plaintext protected by the session cipher.
type SessionRecord struct {
	Secret string `json:"secret"`
	// Expiry is an absolute unix timestamp in milliseconds.
	Expiry int64 `json:"expiry"`
}

// ExpiresAt converts the stored expiry into a time value.
func (r SessionRecord) ExpiresAt() time.Time {
	return time.UnixMilli(r.Expiry)
}

// IsExpired reports whether reference lies strictly after the expiry.
func (r SessionRecord) IsExpired(reference time.Time) bool {
	return reference.UnixMilli() > r.Expiry
}

// Valid reports whether the record carries the fields every issued session has.
func (r SessionRecord) Valid() bool {
	return r.Secret != "" && r.Expiry > 0
}

// CipherMaterial is the text-encoded triple kept in a tab's storage area.
type CipherMaterial struct {
	Ciphertext string `json:"ciphertext"`
	Key        string `json:"key"`
	Nonce      string `json:"nonce"`
}

// Complete reports whether all three slots are populated.
func (m CipherMaterial) Complete() bool {
	return m.Ciphertext != "" && m.Key != "" && m.Nonce != ""
}

// SessionStatus is what the page-load check reports to a tab.
type SessionStatus struct {
	Authenticated bool       `json:"authenticated"`
	NeedsLogout   bool       `json:"needs_logout"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}
