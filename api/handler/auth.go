package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/powerpanel/api/transport"
	"github.com/fastygo/powerpanel/pkg/httpcontext"
	authUC "github.com/fastygo/powerpanel/usecase/auth"
)

type AuthHandler struct {
	baseHandler
	uc *authUC.UseCase
}

func NewAuthHandler(uc *authUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Log in and issue a session for the calling tab
// @Tags auth
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	tabID := h.tabID(ctx)
	if tabID == "" {
		return
	}

	var req transport.LoginRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Username == "" {
		h.invalidPayload(ctx)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	token, err := h.uc.Login(stdCtx, tabID, req.Username, req.Password)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	status := h.uc.Status(stdCtx, tabID)
	h.respondSuccess(ctx, http.StatusOK, transport.LoginResponse{
		Token:     token,
		TabID:     tabID,
		ExpiresAt: status.ExpiresAt,
	})
}

// @Summary Erase the calling tab's session
// @Tags auth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	tabID := h.tabID(ctx)
	if tabID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Logout(stdCtx, tabID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]bool{"logged_out": true})
}

// @Summary Report the calling tab's session state
// @Tags auth
// @Router /api/v1/auth/session [get]
func (h *AuthHandler) Session(ctx *fasthttp.RequestCtx) {
	tabID := h.tabID(ctx)
	if tabID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.respondSuccess(ctx, http.StatusOK, h.uc.Status(stdCtx, tabID))
}
