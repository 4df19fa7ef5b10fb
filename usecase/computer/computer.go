package computer

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/internal/metrics"
	appLogger "github.com/fastygo/powerpanel/pkg/logger"
	"github.com/fastygo/powerpanel/usecase"
)

// Backend issues commands to the control backend.
type Backend interface {
	Shutdown(ctx context.Context, name string) error
	ShutdownAll(ctx context.Context) error
	Remove(ctx context.Context, name string) error
}

// Snapshots exposes the polled machine list.
type Snapshots interface {
	Snapshot() domain.Snapshot
	Refresh(ctx context.Context) (domain.Snapshot, error)
}

// ShutdownRequest carries the second factor for a shutdown command.
// Name is empty for shutdown-all.
type ShutdownRequest struct {
	Name           string
	AccessPassword string
}

// CommandInput is an undecoded command request: the target machine, if any,
// and the raw JSON body.
type CommandInput struct {
	Name string
	Body []byte
}

type accessBody struct {
	Password string `json:"password"`
}

func shutdownRequest(payload interface{}) (ShutdownRequest, error) {
	switch p := payload.(type) {
	case ShutdownRequest:
		return p, nil
	case CommandInput:
		var body accessBody
		if err := json.Unmarshal(p.Body, &body); err != nil {
			return ShutdownRequest{}, domain.ErrInvalidPayload
		}
		return ShutdownRequest{Name: p.Name, AccessPassword: body.Password}, nil
	default:
		return ShutdownRequest{}, domain.ErrInvalidPayload
	}
}

type UseCase struct {
	backend        Backend
	snapshots      Snapshots
	audit          usecase.CommandAudit
	accessPassword string
	logger         *zap.Logger
}

func New(backend Backend, snapshots Snapshots, audit usecase.CommandAudit, accessPassword string, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		backend:        backend,
		snapshots:      snapshots,
		audit:          audit,
		accessPassword: accessPassword,
		logger:         logger,
	}
}

// List returns the latest machine snapshot.
func (uc *UseCase) List(_ context.Context) domain.Snapshot {
	return uc.snapshots.Snapshot()
}

// Retry polls the control backend immediately.
func (uc *UseCase) Retry(ctx context.Context) (domain.Snapshot, error) {
	snap, err := uc.snapshots.Refresh(ctx)
	uc.finish(ctx, domain.ActionRetry, "", err)
	if err != nil {
		return snap, domain.WrapError(domain.ErrCodeUnavailable, "still unable to connect to the backend", err)
	}
	return snap, nil
}

func (uc *UseCase) Shutdown(ctx context.Context, req ShutdownRequest) error {
	if req.Name == "" {
		return domain.ErrInvalidPayload
	}
	if !uc.checkAccess(req.AccessPassword) {
		uc.deny(ctx, domain.ActionShutdown, req.Name)
		return domain.ErrInvalidAccessPassword
	}

	err := uc.backend.Shutdown(ctx, req.Name)
	uc.finish(ctx, domain.ActionShutdown, req.Name, err)
	return err
}

func (uc *UseCase) ShutdownAll(ctx context.Context, req ShutdownRequest) error {
	if !uc.checkAccess(req.AccessPassword) {
		uc.deny(ctx, domain.ActionShutdownAll, "")
		return domain.ErrInvalidAccessPassword
	}

	err := uc.backend.ShutdownAll(ctx)
	uc.finish(ctx, domain.ActionShutdownAll, "", err)
	return err
}

// Remove deletes a machine and refreshes the snapshot.
func (uc *UseCase) Remove(ctx context.Context, name string) (domain.Snapshot, error) {
	if name == "" {
		return domain.Snapshot{}, domain.ErrInvalidPayload
	}

	if err := uc.backend.Remove(ctx, name); err != nil {
		uc.finish(ctx, domain.ActionRemove, name, err)
		return domain.Snapshot{}, err
	}
	uc.finish(ctx, domain.ActionRemove, name, nil)

	snap, err := uc.snapshots.Refresh(ctx)
	if err != nil {
		appLogger.WithRequestID(ctx, uc.logger).Warn("refresh after remove failed", zap.Error(err))
	}
	return snap, nil
}

// RegisterCommands exposes the privileged actions through d. Payloads are
// decoded inside the commands so that the dispatcher's session check runs
// before any request validation.
func (uc *UseCase) RegisterCommands(d *usecase.Dispatcher) {
	d.RegisterCommand(domain.ActionRetry, func(ctx context.Context, _ interface{}) (interface{}, error) {
		return uc.Retry(ctx)
	})
	d.RegisterCommand(domain.ActionShutdown, func(ctx context.Context, payload interface{}) (interface{}, error) {
		req, err := shutdownRequest(payload)
		if err != nil {
			return nil, err
		}
		return nil, uc.Shutdown(ctx, req)
	})
	d.RegisterCommand(domain.ActionShutdownAll, func(ctx context.Context, payload interface{}) (interface{}, error) {
		req, err := shutdownRequest(payload)
		if err != nil {
			return nil, err
		}
		return nil, uc.ShutdownAll(ctx, req)
	})
	d.RegisterCommand(domain.ActionRemove, func(ctx context.Context, payload interface{}) (interface{}, error) {
		switch p := payload.(type) {
		case string:
			return uc.Remove(ctx, p)
		case CommandInput:
			return uc.Remove(ctx, p.Name)
		default:
			return nil, domain.ErrInvalidPayload
		}
	})
}

func (uc *UseCase) checkAccess(password string) bool {
	if uc.accessPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(uc.accessPassword)) == 1
}

func (uc *UseCase) deny(ctx context.Context, action, target string) {
	appLogger.WithRequestID(ctx, uc.logger).Warn("access password rejected",
		zap.String("tab_id", appLogger.TabIDFromContext(ctx)),
		zap.String("command", action))

	metrics.IncCommand(action, domain.OutcomeDenied)
	uc.record(ctx, &domain.CommandRecord{
		Action:  action,
		Target:  target,
		Outcome: domain.OutcomeDenied,
		Error:   domain.ErrInvalidAccessPassword.Error(),
	})
}

func (uc *UseCase) finish(ctx context.Context, action, target string, err error) {
	record := &domain.CommandRecord{
		Action:  action,
		Target:  target,
		Outcome: domain.OutcomeSent,
	}
	log := appLogger.WithRequestID(ctx, uc.logger)
	if err != nil {
		record.Outcome = domain.OutcomeFailed
		record.Error = err.Error()
		log.Warn("command failed", zap.String("command", action), zap.String("target", target), zap.Error(err))
	} else {
		log.Info("command sent", zap.String("command", action), zap.String("target", target))
	}

	metrics.IncCommand(action, record.Outcome)
	uc.record(ctx, record)
}

func (uc *UseCase) record(ctx context.Context, record *domain.CommandRecord) {
	if uc.audit == nil {
		return
	}
	record.TabID = appLogger.TabIDFromContext(ctx)
	record.CreatedAt = time.Now().UTC()
	if err := uc.audit.RecordCommand(ctx, record); err != nil {
		appLogger.WithRequestID(ctx, uc.logger).Warn("failed to record command", zap.Error(err))
	}
}
