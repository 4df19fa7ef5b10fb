package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/internal/infrastructure/buffer"
	"github.com/fastygo/powerpanel/usecase"
)

// BufferBridge routes audit writes through the buffer processor.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) RecordCommand(ctx context.Context, record *domain.CommandRecord) error {
	if b.processor == nil || record == nil {
		return domain.ErrInvalidPayload
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	priority := 3
	if record.Outcome != domain.OutcomeSent {
		priority = 2
	}

	item := buffer.Item{
		ID:        record.ID,
		TabID:     record.TabID,
		Entity:    buffer.EntityCommand,
		Operation: buffer.OperationCreate,
		Data:      payload,
		Priority:  priority,
		Timestamp: record.CreatedAt,
	}
	return b.processor.BufferOperation(ctx, item)
}

var _ usecase.CommandAudit = (*BufferBridge)(nil)
