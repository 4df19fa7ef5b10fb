package auth

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/internal/config"
	appLogger "github.com/fastygo/powerpanel/pkg/logger"
)

// Sessions is the subset of the session use case needed for login.
type Sessions interface {
	Issue(ctx context.Context, tabID string) (string, error)
	Logout(ctx context.Context, tabID string) error
	Status(ctx context.Context, tabID string) domain.SessionStatus
}

type UseCase struct {
	sessions Sessions
	admin    config.AdminConfig
	logger   *zap.Logger
}

func New(sessions Sessions, admin config.AdminConfig, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		sessions: sessions,
		admin:    admin,
		logger:   logger,
	}
}

// Login checks the administrator credentials and, on success, issues a
// fresh session for tabID, replacing any previous one.
func (uc *UseCase) Login(ctx context.Context, tabID, username, password string) (string, error) {
	log := appLogger.WithRequestID(ctx, uc.logger)

	if !uc.checkCredentials(username, password) {
		log.Info("login rejected", zap.String("tab_id", tabID))
		return "", domain.ErrInvalidCredentials
	}

	token, err := uc.sessions.Issue(ctx, tabID)
	if err != nil {
		log.Error("failed to issue session", zap.String("tab_id", tabID), zap.Error(err))
		return "", err
	}
	return token, nil
}

func (uc *UseCase) Logout(ctx context.Context, tabID string) error {
	return uc.sessions.Logout(ctx, tabID)
}

// Status runs the page-load check: an expired session is erased before the
// status is reported.
func (uc *UseCase) Status(ctx context.Context, tabID string) domain.SessionStatus {
	return uc.sessions.Status(ctx, tabID)
}

func (uc *UseCase) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(uc.admin.Username)) == 1

	var passOK bool
	switch {
	case uc.admin.PasswordHash != "":
		err := bcrypt.CompareHashAndPassword([]byte(uc.admin.PasswordHash), []byte(password))
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			uc.logger.Warn("invalid admin password hash", zap.Error(err))
		}
		passOK = err == nil
	case uc.admin.Password != "":
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(uc.admin.Password)) == 1
	}

	return userOK && passOK
}
