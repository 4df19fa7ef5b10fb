package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/internal/metrics"
	appLogger "github.com/fastygo/powerpanel/pkg/logger"
)

type CommandHandler func(ctx context.Context, payload interface{}) (interface{}, error)

// SessionGuard is the force-logout check consulted before every command.
type SessionGuard interface {
	NeedsLogout(ctx context.Context, tabID string) bool
	Logout(ctx context.Context, tabID string) error
}

// Dispatcher runs privileged commands behind the session check, so that every
// action goes through the same check-then-act sequence.
type Dispatcher struct {
	guard    SessionGuard
	audit    CommandAudit
	logger   *zap.Logger
	handlers map[string]CommandHandler
	mu       sync.RWMutex
}

func NewDispatcher(guard SessionGuard, audit CommandAudit, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		guard:    guard,
		audit:    audit,
		logger:   logger,
		handlers: make(map[string]CommandHandler),
	}
}

func (d *Dispatcher) RegisterCommand(name string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = handler
}

// Execute runs the named command for tabID. When the tab needs a forced
// logout its session is erased and domain.ErrSessionExpired is returned
// without invoking the handler.
func (d *Dispatcher) Execute(ctx context.Context, tabID, name string, payload interface{}) (interface{}, error) {
	d.mu.RLock()
	handler, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("command handler %s not registered", name)
	}

	if d.guard.NeedsLogout(ctx, tabID) {
		log := appLogger.WithRequestID(ctx, d.logger)
		log.Info("session expired, forcing logout",
			zap.String("tab_id", tabID),
			zap.String("command", name))

		if err := d.guard.Logout(ctx, tabID); err != nil {
			log.Warn("failed to clear session", zap.String("tab_id", tabID), zap.Error(err))
		}

		metrics.IncCommand(name, domain.OutcomeDenied)
		d.record(ctx, &domain.CommandRecord{
			TabID:   tabID,
			Action:  name,
			Outcome: domain.OutcomeDenied,
			Error:   domain.ErrSessionExpired.Error(),
		})
		return nil, domain.ErrSessionExpired
	}

	return handler(appLogger.ContextWithTabID(ctx, tabID), payload)
}

func (d *Dispatcher) record(ctx context.Context, record *domain.CommandRecord) {
	if d.audit == nil {
		return
	}
	if err := d.audit.RecordCommand(ctx, record); err != nil {
		appLogger.WithRequestID(ctx, d.logger).Warn("failed to record command", zap.Error(err))
	}
}
