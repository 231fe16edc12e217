package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/pointgrid/loyalty-core/internal/model"
	xhttp "github.com/pointgrid/loyalty-core/pkg/http"
)

type MergeService interface {
	Merge(ctx context.Context, merchantID, targetClientID, sourceClientID int64, actor, reason string) (*model.MerchantClient, error)
}

type MergeHandler struct {
	svc MergeService
}

func RegisterMergeRoutes(e *router.Group, h *MergeHandler) {
	e.POST("/merchants/{merchant_id}/clients/{client_id}/merge", h.Merge)
}

func NewMergeHandler(mergeService MergeService) *MergeHandler {
	return &MergeHandler{
		svc: mergeService,
	}
}

type mergeRequest struct {
	SourceClientID int64  `json:"source_client_id"`
	Actor          string `json:"actor"`
	Reason         string `json:"reason"`
}

/* --------------------------------- Routes ----------------------------------- */

// Merge absorbs source_client_id into the client addressed by the path.
func (h *MergeHandler) Merge(ctx *xhttp.RequestCtx) {
	merchantID, targetID, ok := pathPair(ctx)
	if !ok {
		return
	}
	var req mergeRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.SourceClientID == 0 {
		writeError(ctx, 400, "source_client_id is required")
		return
	}

	merged, err := h.svc.Merge(ctx, merchantID, targetID, req.SourceClientID, req.Actor, req.Reason)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, merged)
}
