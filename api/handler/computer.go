package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/pkg/httpcontext"
	"github.com/fastygo/powerpanel/usecase"
	computerUC "github.com/fastygo/powerpanel/usecase/computer"
)

// ComputerHandler serves the machine list and sends every privileged action
// through the dispatcher.
type ComputerHandler struct {
	baseHandler
	uc         *computerUC.UseCase
	dispatcher *usecase.Dispatcher
}

func NewComputerHandler(uc *computerUC.UseCase, dispatcher *usecase.Dispatcher, adapter *httpcontext.Adapter, logger *zap.Logger) *ComputerHandler {
	return &ComputerHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		dispatcher:  dispatcher,
	}
}

// @Summary List machines from the last poll
// @Tags computers
// @Router /api/v1/computers [get]
func (h *ComputerHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.respondSuccess(ctx, http.StatusOK, h.uc.List(stdCtx))
}

// @Summary Poll the control backend now
// @Tags computers
// @Router /api/v1/computers/retry [post]
func (h *ComputerHandler) Retry(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, domain.ActionRetry, nil)
}

// @Summary Shut down one machine
// @Tags computers
// @Router /api/v1/computers/{name}/shutdown [post]
func (h *ComputerHandler) Shutdown(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, domain.ActionShutdown, commandInput(ctx))
}

// @Summary Shut down every machine
// @Tags computers
// @Router /api/v1/computers/shutdown-all [post]
func (h *ComputerHandler) ShutdownAll(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, domain.ActionShutdownAll, commandInput(ctx))
}

// @Summary Remove a machine from the control backend
// @Tags computers
// @Router /api/v1/computers/{name} [delete]
func (h *ComputerHandler) Remove(ctx *fasthttp.RequestCtx) {
	h.execute(ctx, domain.ActionRemove, commandInput(ctx))
}

func (h *ComputerHandler) execute(ctx *fasthttp.RequestCtx, action string, payload interface{}) {
	tabID := h.tabID(ctx)
	if tabID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.dispatcher.Execute(stdCtx, tabID, action, payload)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if result == nil {
		result = map[string]string{"action": action, "outcome": domain.OutcomeSent}
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// commandInput captures the request undecoded; the registered command
// validates it after the session check.
func commandInput(ctx *fasthttp.RequestCtx) computerUC.CommandInput {
	return computerUC.CommandInput{
		Name: pathParam(ctx, "name"),
		Body: append([]byte(nil), ctx.PostBody()...),
	}
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	value, _ := ctx.UserValue(name).(string)
	return value
}
