package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/api/transport"
	"github.com/fastygo/powerpanel/internal/infrastructure/monitor"
	"github.com/fastygo/powerpanel/pkg/httpcontext"
)

// StatusSource reports the last dependency check.
type StatusSource interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor      StatusSource
	requireRedis bool
}

// NewHealthHandler reports healthy while the control backend answers and,
// when sessions live in Redis, while Redis answers.
func NewHealthHandler(mon StatusSource, requireRedis bool, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler:  newBaseHandler(adapter, logger),
		monitor:      mon,
		requireRedis: requireRedis,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services": map[string]interface{}{
			"control":    status.Control,
			"postgresql": status.PostgreSQL,
			"redis":      status.Redis,
			"buffer": map[string]interface{}{
				"online": status.Buffer,
				"size":   status.BufferSize,
			},
		},
	}

	if status.Control && (!h.requireRedis || status.Redis) {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}
