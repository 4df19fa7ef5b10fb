package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/internal/metrics"
	appLogger "github.com/fastygo/powerpanel/pkg/logger"
)

// Issue creates a new session for tabID and returns the text-encoded
// ciphertext as the auth token. Any previous session of the tab is replaced;
// concurrent issuance for one tab is last-write-wins. Credentials must have
// been checked by the caller.
func (uc *UseCase) Issue(ctx context.Context, tabID string) (string, error) {
	record := domain.SessionRecord{
		Secret: uuid.NewString(),
		Expiry: uc.now().Add(uc.ttl).UnixMilli(),
	}

	payload, err := encodeRecord(record)
	if err != nil {
		return "", fmt.Errorf("encoding session record: %w", err)
	}

	ciphertext, key, nonce, err := uc.cipher.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("encrypting session record: %w", err)
	}

	material := encodeMaterial(ciphertext, key, nonce)
	if err := uc.storage.Scope(tabID).Put(ctx, material); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}

	metrics.IncSessionIssued()
	appLogger.WithRequestID(ctx, uc.logger).Info("session issued",
		zap.String("tab_id", tabID),
		zap.Time("expires_at", record.ExpiresAt()))

	return material.Ciphertext, nil
}
