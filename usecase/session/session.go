// Package session issues, validates and expires the per-tab encrypted session
// token.
//
// The record {secret, expiry} is sealed with a single-use key, and the key and
// nonce are stored next to the ciphertext in the same tab area. The
// encryption therefore gives tamper evidence through the authentication tag,
// not confidentiality against anyone who can read that area.
package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/repository"
	"github.com/fastygo/powerpanel/usecase"
)

// DefaultTTL is the fixed lifetime of an issued session.
const DefaultTTL = 10 * time.Minute

// Option customizes a UseCase.
type Option func(uc *UseCase)

// WithClock replaces the wall clock used for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

type UseCase struct {
	cipher  usecase.SessionCipher
	storage repository.SessionStorage
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

func New(
	cipher usecase.SessionCipher,
	storage repository.SessionStorage,
	ttl time.Duration,
	logger *zap.Logger,
	opts ...Option,
) *UseCase {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	uc := &UseCase{
		cipher:  cipher,
		storage: storage,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// TTL returns the lifetime given to new sessions.
func (uc *UseCase) TTL() time.Duration {
	return uc.ttl
}
