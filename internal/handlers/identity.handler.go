package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/pointgrid/loyalty-core/internal/model"
	xhttp "github.com/pointgrid/loyalty-core/pkg/http"
	"golang.org/x/crypto/bcrypt"
)

type IdentityService interface {
	Resolve(ctx context.Context, req model.ResolveRequest) (*model.EndUser, bool, error)
	Get(ctx context.Context, id int64) (*model.EndUser, error)
	Delete(ctx context.Context, id int64) error
}

type IdentityHandler struct {
	svc IdentityService
}

func RegisterIdentityRoutes(e *router.Group, h *IdentityHandler) {
	e.POST("/identity/resolve", h.Resolve)
	e.GET("/end-users/{end_user_id}", h.GetEndUser)
	e.DELETE("/end-users/{end_user_id}", h.DeleteEndUser)
}

func NewIdentityHandler(identityService IdentityService) *IdentityHandler {
	return &IdentityHandler{
		svc: identityService,
	}
}

type resolveRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Pin   string `json:"pin"`
}

type resolveResponse struct {
	EndUser *model.EndUser `json:"end_user"`
	Created bool           `json:"created"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *IdentityHandler) Resolve(ctx *xhttp.RequestCtx) {
	var req resolveRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.ResolveRequest{
		Email: req.Email,
		Phone: req.Phone,
		Name:  req.Name,
	}
	if req.Pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
		if err != nil {
			writeError(ctx, 500, "failed to hash pin")
			return
		}
		p.PinHash = string(hash)
	}

	user, created, err := h.svc.Resolve(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	status := 200
	if created {
		status = 201
	}
	writeJSON(ctx, status, resolveResponse{EndUser: user, Created: created})
}

func (h *IdentityHandler) GetEndUser(ctx *xhttp.RequestCtx) {
	id, err := param(ctx, "end_user_id")
	if err != nil {
		writeError(ctx, 400, "invalid end_user_id")
		return
	}
	user, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, user)
}

func (h *IdentityHandler) DeleteEndUser(ctx *xhttp.RequestCtx) {
	id, err := param(ctx, "end_user_id")
	if err != nil {
		writeError(ctx, 400, "invalid end_user_id")
		return
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(204)
}
