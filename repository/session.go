package repository

import (
	"context"

	"github.com/fastygo/powerpanel/domain"
)

// SessionStore is one tab's ephemeral area holding the ciphertext, key and
// nonce slots of the current session.
type SessionStore interface {
	// Put writes all three slots, replacing whatever was stored.
	Put(ctx context.Context, material domain.CipherMaterial) error
	// Read returns domain.ErrMissingSession if any slot is absent.
	Read(ctx context.Context) (domain.CipherMaterial, error)
	Clear(ctx context.Context) error
}

// SessionStorage hands out the isolated area of each tab.
type SessionStorage interface {
	Scope(tabID string) SessionStore
}

// SlotNames returns the ciphertext, key and nonce slot names for base.
func SlotNames(base string) (ciphertext, key, nonce string) {
	return base, base + "_key", base + "_iv"
}
