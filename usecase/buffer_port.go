package usecase

import (
	"context"

	"github.com/fastygo/powerpanel/domain"
)

// CommandAudit abstracts the buffered audit log so use cases stay storage-agnostic.
type CommandAudit interface {
	RecordCommand(ctx context.Context, record *domain.CommandRecord) error
}
