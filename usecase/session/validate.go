package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/internal/metrics"
	appLogger "github.com/fastygo/powerpanel/pkg/logger"
	"github.com/fastygo/powerpanel/repository"
)

// IsValid reports whether tabID holds a usable, unexpired session. It
// validates whatever the tab currently stores and never returns an error:
// every failure is "no session". A record that decrypts and parses but has
// expired is erased.
func (uc *UseCase) IsValid(ctx context.Context, tabID string) bool {
	log := appLogger.WithRequestID(ctx, uc.logger).With(zap.String("tab_id", tabID))

	store := uc.storage.Scope(tabID)
	record, err := uc.load(ctx, store)
	if err != nil {
		metrics.IncValidation(validationOutcome(err))
		log.Debug("session rejected", zap.Error(err))
		return false
	}

	if record.IsExpired(uc.now()) {
		metrics.IncValidation(metrics.ValidationExpired)
		if err := store.Clear(ctx); err != nil {
			log.Warn("failed to clear expired session", zap.Error(err))
		}
		log.Info("session expired", zap.Time("expired_at", record.ExpiresAt()))
		return false
	}

	metrics.IncValidation(metrics.ValidationValid)
	return true
}

// load reads, decrypts and parses the record stored in store.
func (uc *UseCase) load(ctx context.Context, store repository.SessionStore) (domain.SessionRecord, error) {
	material, err := store.Read(ctx)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	ciphertext, key, nonce, err := decodeMaterial(material)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	plaintext, err := uc.cipher.Decrypt(ciphertext, key, nonce)
	if err != nil {
		if !errors.Is(err, domain.ErrCryptoFailure) {
			err = fmt.Errorf("%w: %v", domain.ErrCryptoFailure, err)
		}
		return domain.SessionRecord{}, err
	}

	return decodeRecord(plaintext)
}

func validationOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingSession):
		return metrics.ValidationMissing
	case errors.Is(err, domain.ErrCryptoFailure):
		return metrics.ValidationCrypto
	case errors.Is(err, domain.ErrMalformedRecord):
		return metrics.ValidationMalformed
	default:
		return metrics.ValidationError
	}
}
