package middleware

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/api/transport"
	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/pkg/httpcontext"
)

// SessionValidator checks the stored session of a tab.
type SessionValidator interface {
	IsValid(ctx context.Context, tabID string) bool
}

// TabScope makes sure every request carries a tab ID. A missing or unusable
// X-Tab-ID header is replaced with a fresh one, and the ID in use is echoed
// in the response so the browser can keep it for the tab's lifetime.
func TabScope(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		tabID := httpcontext.TabID(ctx)
		if tabID == "" {
			tabID = uuid.NewString()
			ctx.Request.Header.Set(httpcontext.TabIDHeader, tabID)
		}
		ctx.Response.Header.Set(httpcontext.TabIDHeader, tabID)
		next(ctx)
	}
}

// RequireSession rejects requests whose tab has no valid session. An expired
// session is erased by the validation itself.
func RequireSession(sessions SessionValidator, adapter *httpcontext.Adapter, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			stdCtx, cancel := adapter.Attach(ctx)
			valid := sessions.IsValid(stdCtx, httpcontext.TabID(ctx))
			cancel()

			if !valid {
				logger.Debug("request without valid session", zap.ByteString("path", ctx.Path()))
				unauthorized(ctx)
				return
			}
			next(ctx)
		}
	}
}

func unauthorized(ctx *fasthttp.RequestCtx) {
	body, _ := json.Marshal(transport.NewError(string(domain.ErrCodeUnauthorized), domain.ErrUnauthorized.Error(), nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBody(body)
}
