package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/api/transport"
	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/pkg/httpcontext"
	"github.com/fastygo/powerpanel/repository"
)

// CommandLogHandler lists the audit trail of privileged actions. A nil
// repository means the audit log is disabled.
type CommandLogHandler struct {
	baseHandler
	commands repository.CommandRepository
}

func NewCommandLogHandler(commands repository.CommandRepository, adapter *httpcontext.Adapter, logger *zap.Logger) *CommandLogHandler {
	return &CommandLogHandler{
		baseHandler: newBaseHandler(adapter, logger),
		commands:    commands,
	}
}

// @Summary List recent privileged actions
// @Tags commands
// @Router /api/v1/commands [get]
func (h *CommandLogHandler) List(ctx *fasthttp.RequestCtx) {
	limit := repository.ClampLimit(parseInt(string(ctx.QueryArgs().Peek("limit")), repository.DefaultCommandLimit))

	records := []domain.CommandRecord{}
	if h.commands != nil {
		stdCtx, cancel := h.requestContext(ctx)
		defer cancel()

		var err error
		records, err = h.commands.List(stdCtx, limit)
		if err != nil {
			h.respondError(ctx, domain.WrapError(domain.ErrCodeUnavailable, "audit log unavailable", err))
			return
		}
		if records == nil {
			records = []domain.CommandRecord{}
		}
	}

	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(records, transport.ListMeta{
		Limit: limit,
		Count: len(records),
	}))
}
