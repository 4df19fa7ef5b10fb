package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/domain"
	appLogger "github.com/fastygo/powerpanel/pkg/logger"
)

// ExpiryTimestamp returns the stored expiry of tabID's session in unix
// milliseconds. It reports false on any read, decrypt or parse failure and
// never modifies the store.
func (uc *UseCase) ExpiryTimestamp(ctx context.Context, tabID string) (int64, bool) {
	record, err := uc.load(ctx, uc.storage.Scope(tabID))
	if err != nil {
		appLogger.WithRequestID(ctx, uc.logger).Debug("failed to extract expiry time",
			zap.String("tab_id", tabID),
			zap.Error(err))
		return 0, false
	}
	return record.Expiry, true
}

// NeedsLogout is the force-logout check run before every privileged action:
// true means the session is missing, unusable or expired.
func (uc *UseCase) NeedsLogout(ctx context.Context, tabID string) bool {
	log := appLogger.WithRequestID(ctx, uc.logger).With(zap.String("tab_id", tabID))

	expiry, ok := uc.ExpiryTimestamp(ctx, tabID)
	if !ok {
		log.Debug("no valid session found or decryption failed")
		return true
	}

	expiresAt := time.UnixMilli(expiry)
	remaining := expiresAt.Sub(uc.now())
	if remaining > 0 {
		log.Debug("session active",
			zap.Time("expires_at", expiresAt),
			zap.Duration("remaining", remaining))
		return false
	}

	log.Debug("session already expired", zap.Time("expired_at", expiresAt))
	return true
}

// Logout erases the session of tabID.
func (uc *UseCase) Logout(ctx context.Context, tabID string) error {
	return uc.storage.Scope(tabID).Clear(ctx)
}

// Status runs the page-load check for tabID.
func (uc *UseCase) Status(ctx context.Context, tabID string) domain.SessionStatus {
	if !uc.IsValid(ctx, tabID) {
		return domain.SessionStatus{NeedsLogout: true}
	}

	status := domain.SessionStatus{Authenticated: true}
	if expiry, ok := uc.ExpiryTimestamp(ctx, tabID); ok {
		expiresAt := time.UnixMilli(expiry).UTC()
		status.ExpiresAt = &expiresAt
	}
	status.NeedsLogout = uc.NeedsLogout(ctx, tabID)
	return status
}
