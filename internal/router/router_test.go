package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap/zaptest"

	apiHandler "github.com/fastygo/powerpanel/api/handler"
	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/internal/config"
	"github.com/fastygo/powerpanel/internal/infrastructure/aead"
	"github.com/fastygo/powerpanel/internal/infrastructure/monitor"
	"github.com/fastygo/powerpanel/internal/metrics"
	"github.com/fastygo/powerpanel/internal/middleware"
	"github.com/fastygo/powerpanel/internal/services"
	"github.com/fastygo/powerpanel/pkg/httpcontext"
	"github.com/fastygo/powerpanel/repository/memory"
	"github.com/fastygo/powerpanel/usecase"
	authUC "github.com/fastygo/powerpanel/usecase/auth"
	computerUC "github.com/fastygo/powerpanel/usecase/computer"
	sessionUC "github.com/fastygo/powerpanel/usecase/session"
)

type fakeControl struct {
	computers []domain.Computer
	commands  []string
}

func (f *fakeControl) List(context.Context) ([]domain.Computer, error) { return f.computers, nil }

func (f *fakeControl) Shutdown(_ context.Context, name string) error {
	f.commands = append(f.commands, "shutdown "+name)
	return nil
}

func (f *fakeControl) ShutdownAll(context.Context) error {
	f.commands = append(f.commands, "shutdown-all")
	return nil
}

func (f *fakeControl) Remove(_ context.Context, name string) error {
	f.commands = append(f.commands, "remove "+name)
	f.computers = nil
	return nil
}

type fixedStatus monitor.Status

func (s fixedStatus) GetStatus() monitor.Status { return monitor.Status(s) }

type app struct {
	handler fasthttp.RequestHandler
	control *fakeControl
	now     time.Time
}

func newApp(t *testing.T) *app {
	t.Helper()

	a := &app{
		control: &fakeControl{computers: []domain.Computer{{Name: "lab-01", Status: domain.ComputerOnline}}},
		now:     time.Date(2024, 5, 24, 17, 20, 48, 0, time.UTC),
	}
	logger := zaptest.NewLogger(t)
	adapter := httpcontext.NewAdapter(time.Second)

	cipher, err := aead.New(aead.AESGCM, nil)
	require.NoError(t, err)
	sessions := sessionUC.New(cipher, memory.NewSessionStorage("my_session_secret"), sessionUC.DefaultTTL, logger,
		sessionUC.WithClock(func() time.Time { return a.now }))

	poller := services.NewPoller(a.control, time.Minute, logger)
	_, err = poller.Refresh(context.Background())
	require.NoError(t, err)

	dispatcher := usecase.NewDispatcher(sessions, nil, logger)
	computers := computerUC.New(a.control, poller, nil, "letmein", logger)
	computers.RegisterCommands(dispatcher)

	auth := authUC.New(sessions, config.AdminConfig{Username: "admin", Password: "pw"}, logger)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	r := New(Handlers{
		Auth:       apiHandler.NewAuthHandler(auth, adapter, logger),
		Computer:   apiHandler.NewComputerHandler(computers, dispatcher, adapter, logger),
		CommandLog: apiHandler.NewCommandLogHandler(nil, adapter, logger),
		Health:     apiHandler.NewHealthHandler(fixedStatus{Control: true}, false, adapter, logger),
	}, middleware.RequireSession(sessions, adapter, logger), Options{Metrics: registry})

	a.handler = r.Handler
	return a
}

type response struct {
	status int
	tabID  string
	body   map[string]interface{}
}

func (a *app) do(t *testing.T, method, path, tabID, body string) response {
	t.Helper()

	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	if tabID != "" {
		req.Header.Set(httpcontext.TabIDHeader, tabID)
	}
	if body != "" {
		req.SetBodyString(body)
	}

	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	a.handler(&ctx)

	resp := response{
		status: ctx.Response.StatusCode(),
		tabID:  string(ctx.Response.Header.Peek(httpcontext.TabIDHeader)),
	}
	if ct := string(ctx.Response.Header.ContentType()); ct == "application/json" {
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp.body))
	}
	return resp
}

func TestRouter_sessionFlow(t *testing.T) {
	a := newApp(t)
	const tab = "tab-1"

	resp := a.do(t, fasthttp.MethodGet, "/api/v1/computers", tab, "")
	assert.Equal(t, fasthttp.StatusUnauthorized, resp.status)

	resp = a.do(t, fasthttp.MethodPost, "/api/v1/auth/login", tab, `{"username":"admin","password":"nope"}`)
	assert.Equal(t, fasthttp.StatusUnauthorized, resp.status)
	assert.Equal(t, "UNAUTHORIZED", resp.body["code"])

	resp = a.do(t, fasthttp.MethodPost, "/api/v1/auth/login", tab, `{"username":"admin","password":"pw"}`)
	require.Equal(t, fasthttp.StatusOK, resp.status)
	data := resp.body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["token"])
	assert.Equal(t, tab, data["tab_id"])

	resp = a.do(t, fasthttp.MethodGet, "/api/v1/computers", tab, "")
	require.Equal(t, fasthttp.StatusOK, resp.status)
	snap := resp.body["data"].(map[string]interface{})
	assert.Len(t, snap["computers"], 1)

	// Another tab shares nothing.
	resp = a.do(t, fasthttp.MethodGet, "/api/v1/computers", "tab-2", "")
	assert.Equal(t, fasthttp.StatusUnauthorized, resp.status)

	resp = a.do(t, fasthttp.MethodPost, "/api/v1/auth/logout", tab, "")
	assert.Equal(t, fasthttp.StatusOK, resp.status)

	resp = a.do(t, fasthttp.MethodGet, "/api/v1/auth/session", tab, "")
	require.Equal(t, fasthttp.StatusOK, resp.status)
	assert.Equal(t, true, resp.body["data"].(map[string]interface{})["needs_logout"])
}

func TestRouter_guardedCommands(t *testing.T) {
	a := newApp(t)
	const tab = "tab-1"

	resp := a.do(t, fasthttp.MethodPost, "/api/v1/computers/shutdown-all", tab, `{"password":"letmein"}`)
	assert.Equal(t, fasthttp.StatusUnauthorized, resp.status)
	assert.Equal(t, "SESSION_EXPIRED", resp.body["code"])
	assert.Empty(t, a.control.commands)

	resp = a.do(t, fasthttp.MethodPost, "/api/v1/auth/login", tab, `{"username":"admin","password":"pw"}`)
	require.Equal(t, fasthttp.StatusOK, resp.status)

	resp = a.do(t, fasthttp.MethodPost, "/api/v1/computers/lab-01/shutdown", tab, `{"password":"wrong"}`)
	assert.Equal(t, fasthttp.StatusForbidden, resp.status)

	resp = a.do(t, fasthttp.MethodPost, "/api/v1/computers/lab-01/shutdown", tab, `{"password":"letmein"}`)
	assert.Equal(t, fasthttp.StatusOK, resp.status)

	resp = a.do(t, fasthttp.MethodPost, "/api/v1/computers/shutdown-all", tab, `{"password":"letmein"}`)
	assert.Equal(t, fasthttp.StatusOK, resp.status)

	resp = a.do(t, fasthttp.MethodDelete, "/api/v1/computers/lab-01", tab, "")
	require.Equal(t, fasthttp.StatusOK, resp.status)
	assert.Empty(t, resp.body["data"].(map[string]interface{})["computers"])

	assert.Equal(t, []string{"shutdown lab-01", "shutdown-all", "remove lab-01"}, a.control.commands)

	// At the expiry instant the command is refused and the session erased.
	a.now = a.now.Add(sessionUC.DefaultTTL)
	resp = a.do(t, fasthttp.MethodPost, "/api/v1/computers/retry", tab, "")
	assert.Equal(t, fasthttp.StatusUnauthorized, resp.status)
	assert.Equal(t, "SESSION_EXPIRED", resp.body["code"])

	resp = a.do(t, fasthttp.MethodGet, "/api/v1/computers", tab, "")
	assert.Equal(t, fasthttp.StatusUnauthorized, resp.status)
}

func TestRouter_tabAssignment(t *testing.T) {
	a := newApp(t)

	resp := a.do(t, fasthttp.MethodGet, "/api/v1/auth/session", "", "")
	assert.Equal(t, fasthttp.StatusOK, resp.status)
	assert.NotEmpty(t, resp.tabID)
}

func TestRouter_healthAndMetrics(t *testing.T) {
	a := newApp(t)

	resp := a.do(t, fasthttp.MethodGet, "/health", "", "")
	assert.Equal(t, fasthttp.StatusOK, resp.status)

	resp = a.do(t, fasthttp.MethodGet, "/metrics", "", "")
	assert.Equal(t, fasthttp.StatusOK, resp.status)

	resp = a.do(t, fasthttp.MethodGet, "/debug/pprof/", "", "")
	assert.Equal(t, fasthttp.StatusNotFound, resp.status)
}

func TestRouter_commandLogDisabled(t *testing.T) {
	a := newApp(t)
	const tab = "tab-1"

	resp := a.do(t, fasthttp.MethodPost, "/api/v1/auth/login", tab, `{"username":"admin","password":"pw"}`)
	require.Equal(t, fasthttp.StatusOK, resp.status)

	testCases := []struct {
		query string
		want  int
	}{
		{query: "?limit=10", want: 10},
		{query: "?limit=-5", want: 50},
		{query: "?limit=9999", want: 500},
		{query: "", want: 50},
	}

	for _, tc := range testCases {
		resp = a.do(t, fasthttp.MethodGet, "/api/v1/commands"+tc.query, tab, "")
		require.Equal(t, fasthttp.StatusOK, resp.status)
		assert.Equal(t, []interface{}{}, resp.body["data"])
		assert.EqualValues(t, tc.want, resp.body["meta"].(map[string]interface{})["limit"], tc.query)
	}
}

func TestRouter_guardRunsBeforePayloadValidation(t *testing.T) {
	a := newApp(t)
	const tab = "tab-x"

	resp := a.do(t, fasthttp.MethodPost, "/api/v1/auth/login", tab, `{"username":"admin","password":"pw"}`)
	require.Equal(t, fasthttp.StatusOK, resp.status)

	resp = a.do(t, fasthttp.MethodPost, "/api/v1/computers/shutdown-all", tab, "")
	assert.Equal(t, fasthttp.StatusBadRequest, resp.status)
	assert.Equal(t, "INVALID", resp.body["code"])

	a.now = a.now.Add(11 * time.Minute)

	for _, path := range []string{"/api/v1/computers/shutdown-all", "/api/v1/computers/lab-01/shutdown"} {
		resp = a.do(t, fasthttp.MethodPost, path, tab, "")
		assert.Equal(t, fasthttp.StatusUnauthorized, resp.status, path)
		assert.Equal(t, "SESSION_EXPIRED", resp.body["code"], path)
	}

	resp = a.do(t, fasthttp.MethodGet, "/api/v1/auth/session", tab, "")
	require.Equal(t, fasthttp.StatusOK, resp.status)
	assert.Equal(t, false, resp.body["data"].(map[string]interface{})["authenticated"])
	assert.Empty(t, a.control.commands)
}
