package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/pointgrid/loyalty-core/internal/model"
	xhttp "github.com/pointgrid/loyalty-core/pkg/http"
)

type VoucherService interface {
	Create(ctx context.Context, merchantID, merchantClientID int64) (*model.Voucher, error)
	Get(ctx context.Context, token string) (*model.Voucher, error)
	Claim(ctx context.Context, token string, recipientEndUserID int64) (*model.ClaimResult, error)
}

type VoucherHandler struct {
	svc VoucherService
}

func RegisterVoucherRoutes(e *router.Group, h *VoucherHandler) {
	e.POST("/merchants/{merchant_id}/clients/{client_id}/vouchers", h.CreateVoucher)
	e.GET("/vouchers/{token}", h.GetVoucher)
	e.POST("/vouchers/{token}/claim", h.ClaimVoucher)
}

func NewVoucherHandler(voucherService VoucherService) *VoucherHandler {
	return &VoucherHandler{
		svc: voucherService,
	}
}

type claimRequest struct {
	EndUserID int64 `json:"end_user_id"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *VoucherHandler) CreateVoucher(ctx *xhttp.RequestCtx) {
	merchantID, clientID, ok := pathPair(ctx)
	if !ok {
		return
	}
	voucher, err := h.svc.Create(ctx, merchantID, clientID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, voucher)
}

func (h *VoucherHandler) GetVoucher(ctx *xhttp.RequestCtx) {
	token, _ := ctx.UserValue("token").(string)
	voucher, err := h.svc.Get(ctx, token)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, voucher)
}

func (h *VoucherHandler) ClaimVoucher(ctx *xhttp.RequestCtx) {
	token, _ := ctx.UserValue("token").(string)
	var req claimRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.EndUserID == 0 {
		writeError(ctx, 400, "end_user_id is required")
		return
	}

	result, err := h.svc.Claim(ctx, token, req.EndUserID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, result)
}
