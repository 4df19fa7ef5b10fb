package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/powerpanel/domain"
	appLogger "github.com/fastygo/powerpanel/pkg/logger"
	"github.com/fastygo/powerpanel/usecase"
)

type fakeGuard struct {
	expired bool
	logouts []string
}

func (g *fakeGuard) NeedsLogout(context.Context, string) bool { return g.expired }

func (g *fakeGuard) Logout(_ context.Context, tabID string) error {
	g.logouts = append(g.logouts, tabID)
	return nil
}

type recordingAudit struct {
	records []domain.CommandRecord
	err     error
}

func (r *recordingAudit) RecordCommand(_ context.Context, record *domain.CommandRecord) error {
	r.records = append(r.records, *record)
	return r.err
}

func TestDispatcher_Execute(t *testing.T) {
	guard := &fakeGuard{}
	audit := &recordingAudit{}
	d := usecase.NewDispatcher(guard, audit, zaptest.NewLogger(t))

	var gotTab string
	calls := 0
	d.RegisterCommand(domain.ActionShutdownAll, func(ctx context.Context, payload interface{}) (interface{}, error) {
		calls++
		gotTab = appLogger.TabIDFromContext(ctx)
		return payload, nil
	})

	out, err := d.Execute(context.Background(), "tab-1", domain.ActionShutdownAll, "payload")
	require.NoError(t, err)
	assert.Equal(t, "payload", out)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "tab-1", gotTab)
	assert.Empty(t, guard.logouts)
	assert.Empty(t, audit.records)
}

func TestDispatcher_Execute_forcedLogout(t *testing.T) {
	guard := &fakeGuard{expired: true}
	audit := &recordingAudit{err: errors.New("audit offline")}
	d := usecase.NewDispatcher(guard, audit, zaptest.NewLogger(t))

	calls := 0
	d.RegisterCommand(domain.ActionShutdown, func(context.Context, interface{}) (interface{}, error) {
		calls++
		return nil, nil
	})

	_, err := d.Execute(context.Background(), "tab-1", domain.ActionShutdown, nil)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeSessionExpired))
	assert.Zero(t, calls)
	assert.Equal(t, []string{"tab-1"}, guard.logouts)

	require.Len(t, audit.records, 1)
	assert.Equal(t, domain.OutcomeDenied, audit.records[0].Outcome)
	assert.Equal(t, domain.ActionShutdown, audit.records[0].Action)
	assert.Equal(t, "tab-1", audit.records[0].TabID)
}

func TestDispatcher_Execute_unknownCommand(t *testing.T) {
	guard := &fakeGuard{expired: true}
	d := usecase.NewDispatcher(guard, nil, nil)

	_, err := d.Execute(context.Background(), "tab-1", "computers.reboot", nil)
	assert.Error(t, err)
	assert.Empty(t, guard.logouts)
}
