package services

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/internal/metrics"
)

// ComputerLister fetches the machine list from the control backend.
type ComputerLister interface {
	List(ctx context.Context) ([]domain.Computer, error)
}

// Poller keeps the latest machine snapshot, refreshed on a cron schedule.
type Poller struct {
	lister   ComputerLister
	logger   *zap.Logger
	cron     *cron.Cron
	interval time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	snapshot domain.Snapshot
}

func NewPoller(lister ComputerLister, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Poller{
		lister:   lister,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		cron:     cron.New(cron.WithSeconds()),
		snapshot: domain.Snapshot{Computers: []domain.Computer{}},
	}

	p.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		_, _ = p.Refresh(ctx)
	}))

	return p
}

// Start fetches once and then launches the scheduler.
func (p *Poller) Start(ctx context.Context) {
	if _, err := p.Refresh(ctx); err != nil {
		p.logger.Warn("initial machine poll failed", zap.Error(err))
	}
	p.cron.Start()
	p.logger.Info("machine poller started", zap.Duration("interval", p.interval))
}

// Stop waits for a running poll to finish or ctx to expire.
func (p *Poller) Stop(ctx context.Context) {
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	p.logger.Info("machine poller stopped")
}

// Snapshot returns the latest poll result.
func (p *Poller) Snapshot() domain.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := p.snapshot
	snap.Computers = make([]domain.Computer, len(p.snapshot.Computers))
	copy(snap.Computers, p.snapshot.Computers)
	return snap
}

// Refresh fetches the machine list now. On failure the previous machine
// list is kept and the backend is marked down.
func (p *Poller) Refresh(ctx context.Context) (domain.Snapshot, error) {
	computers, err := p.lister.List(ctx)

	p.mu.Lock()
	if err != nil {
		p.snapshot.BackendDown = true
		p.snapshot.Error = "Unable to connect to the backend."
	} else {
		p.snapshot = domain.Snapshot{
			Computers: computers,
			FetchedAt: p.now().UTC(),
		}
	}
	p.mu.Unlock()

	metrics.SetBackendUp(err == nil)
	if err != nil {
		p.logger.Warn("machine poll failed", zap.Error(err))
		return p.Snapshot(), err
	}
	p.logger.Debug("machine poll complete", zap.Int("computers", len(computers)))
	return p.Snapshot(), nil
}
