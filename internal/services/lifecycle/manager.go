package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc describes a graceful shutdown callback.
type ShutdownFunc func(ctx context.Context) error

// Stage groups components that stop together. Stages stop from the highest
// to the lowest: the HTTP server first, so no request reaches a stopped
// worker, and storage last, so the audit drain and pending session writes
// still have their stores.
type Stage int

const (
	// StageStorage holds session areas, the audit buffer and database clients.
	StageStorage Stage = iota
	// StageWorkers holds the poller, the audit drain and the monitor.
	StageWorkers
	// StageServer holds the HTTP listener.
	StageServer
)

func (s Stage) String() string {
	switch s {
	case StageStorage:
		return "storage"
	case StageWorkers:
		return "workers"
	case StageServer:
		return "server"
	default:
		return "unknown"
	}
}

// HookOption customizes a registered hook.
type HookOption func(h *hook)

// WithTimeout bounds a single hook. The overall shutdown deadline still
// applies when it is shorter.
func WithTimeout(timeout time.Duration) HookOption {
	return func(h *hook) {
		h.timeout = timeout
	}
}

type hook struct {
	name    string
	stage   Stage
	timeout time.Duration
	fn      ShutdownFunc
}

// Manager coordinates graceful shutdown hooks and reacts to OS signals.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	hooks []hook
}

// New creates a lifecycle manager whose whole shutdown is bounded by timeout.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a shutdown hook to stage. Within a stage hooks run in
// reverse registration order.
func (m *Manager) Register(stage Stage, name string, fn ShutdownFunc, opts ...HookOption) {
	if fn == nil {
		return
	}
	h := hook{name: name, stage: stage, fn: fn}
	for _, opt := range opts {
		opt(&h)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Shutdown stops every stage in order. A failing or timed-out hook does not
// prevent the remaining hooks from running; all errors are joined.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	var result error
	for stage := StageServer; stage >= StageStorage; stage-- {
		for i := len(m.hooks) - 1; i >= 0; i-- {
			h := m.hooks[i]
			if h.stage != stage {
				continue
			}
			if err := m.run(ctx, h); err != nil {
				result = errors.Join(result, err)
			}
		}
	}
	return result
}

func (m *Manager) run(ctx context.Context, h hook) error {
	log := m.logger.With(zap.String("component", h.name), zap.Stringer("stage", h.stage))

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	started := time.Now()
	done := make(chan error, 1)
	go func() { done <- h.fn(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		log.Error("shutdown hook failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return err
	}
	log.Info("component stopped", zap.Duration("elapsed", time.Since(started)))
	return nil
}

// Listen waits in the background for SIGTERM or SIGINT and then invokes
// cancel.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		sig := <-sigCh
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
}
