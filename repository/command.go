package repository

import (
	"context"

	"github.com/fastygo/powerpanel/domain"
)

// Bounds applied to audit log listings.
const (
	DefaultCommandLimit = 50
	MaxCommandLimit     = 500
)

type CommandRepository interface {
	Record(ctx context.Context, record *domain.CommandRecord) error
	List(ctx context.Context, limit int) ([]domain.CommandRecord, error)
}

// ClampLimit maps a requested listing size into [1, MaxCommandLimit];
// non-positive values select DefaultCommandLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultCommandLimit
	case limit > MaxCommandLimit:
		return MaxCommandLimit
	default:
		return limit
	}
}
