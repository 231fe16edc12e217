package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/internal/services"
	xhttp "github.com/pointgrid/loyalty-core/pkg/http"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type LedgerService interface {
	Credit(ctx context.Context, req model.CreditRequest) (*model.CreditResult, error)
	Redeem(ctx context.Context, req model.RedeemRequest) (*model.RedeemResult, error)
	Adjust(ctx context.Context, req model.AdjustRequest) (*model.AdjustResult, error)
	GetClient(ctx context.Context, merchantID, clientID int64) (*model.MerchantClient, error)
	ListClients(ctx context.Context, merchantID int64, limit, offset int) ([]*model.MerchantClient, int64, error)
	History(ctx context.Context, merchantID, clientID int64, limit, offset int) ([]*model.LedgerEntry, int64, error)
	DeleteClient(ctx context.Context, merchantID, clientID int64) error
}

// PresenceStore trades a one-shot token for the merchant client it was
// issued to.
type PresenceStore interface {
	Issue(ctx context.Context, merchantClientID int64) (string, error)
	Consume(ctx context.Context, token string) (int64, bool, error)
}

type LoyaltyHandler struct {
	svc      LedgerService
	presence PresenceStore
}

func RegisterLoyaltyRoutes(e *router.Group, h *LoyaltyHandler) {
	e.POST("/merchants/{merchant_id}/credits", h.Credit)
	e.GET("/merchants/{merchant_id}/clients", h.ListClients)
	e.GET("/merchants/{merchant_id}/clients/{client_id}", h.GetClient)
	e.DELETE("/merchants/{merchant_id}/clients/{client_id}", h.DeleteClient)
	e.POST("/merchants/{merchant_id}/clients/{client_id}/redemptions", h.Redeem)
	e.POST("/merchants/{merchant_id}/clients/{client_id}/adjustments", h.Adjust)
	e.GET("/merchants/{merchant_id}/clients/{client_id}/transactions", h.ListTransactions)
	e.POST("/merchants/{merchant_id}/clients/{client_id}/presence", h.IssuePresence)
}

func NewLoyaltyHandler(ledgerService LedgerService, presence PresenceStore) *LoyaltyHandler {
	return &LoyaltyHandler{
		svc:      ledgerService,
		presence: presence,
	}
}

type creditRequest struct {
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Name           string          `json:"name"`
	Pin            string          `json:"pin"`
	Amount         decimal.Decimal `json:"amount"`
	StaffID        *int64          `json:"staff_id"`
	Source         string          `json:"source"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type redeemRequest struct {
	Pin            string `json:"pin"`
	PresenceToken  string `json:"presence_token"`
	StaffID        *int64 `json:"staff_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type adjustRequest struct {
	PointsDelta int64  `json:"points_delta"`
	StaffID     int64  `json:"staff_id"`
	Reason      string `json:"reason"`
}

type clientListResponse struct {
	Items []*model.MerchantClient `json:"items"`
	Total int64                   `json:"total"`
}

type transactionListResponse struct {
	Items []*model.LedgerEntry `json:"items"`
	Total int64                `json:"total"`
}

type presenceResponse struct {
	Token string `json:"token"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *LoyaltyHandler) Credit(ctx *xhttp.RequestCtx) {
	merchantID, err := param(ctx, "merchant_id")
	if err != nil {
		writeError(ctx, 400, "invalid merchant_id")
		return
	}
	var req creditRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.CreditRequest{
		MerchantID:     merchantID,
		StaffID:        req.StaffID,
		Email:          req.Email,
		Phone:          req.Phone,
		Name:           req.Name,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		Source:         req.Source,
	}
	if req.Pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
		if err != nil {
			writeError(ctx, 500, "failed to hash pin")
			return
		}
		p.PinHash = string(hash)
	}

	result, err := h.svc.Credit(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	status := 201
	if result.Idempotent {
		status = 200
	}
	writeJSON(ctx, status, result)
}

func (h *LoyaltyHandler) Redeem(ctx *xhttp.RequestCtx) {
	merchantID, clientID, ok := pathPair(ctx)
	if !ok {
		return
	}
	var req redeemRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.RedeemRequest{
		MerchantID:       merchantID,
		MerchantClientID: clientID,
		StaffID:          req.StaffID,
		IdempotencyKey:   req.IdempotencyKey,
		Pin:              req.Pin,
	}
	if req.PresenceToken != "" {
		id, found, err := h.presence.Consume(ctx, req.PresenceToken)
		if err != nil {
			writeError(ctx, 500, err.Error())
			return
		}
		if !found || id != clientID {
			writeError(ctx, 401, "presence token invalid or expired")
			return
		}
		p.VerifiedPresence = true
	}

	result, err := h.svc.Redeem(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	status := 201
	if result.Idempotent {
		status = 200
	}
	writeJSON(ctx, status, result)
}

func (h *LoyaltyHandler) Adjust(ctx *xhttp.RequestCtx) {
	merchantID, clientID, ok := pathPair(ctx)
	if !ok {
		return
	}
	var req adjustRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	result, err := h.svc.Adjust(ctx, model.AdjustRequest{
		MerchantID:       merchantID,
		MerchantClientID: clientID,
		PointsDelta:      req.PointsDelta,
		StaffID:          req.StaffID,
		Reason:           req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, result)
}

func (h *LoyaltyHandler) GetClient(ctx *xhttp.RequestCtx) {
	merchantID, clientID, ok := pathPair(ctx)
	if !ok {
		return
	}
	client, err := h.svc.GetClient(ctx, merchantID, clientID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, client)
}

func (h *LoyaltyHandler) ListClients(ctx *xhttp.RequestCtx) {
	merchantID, err := param(ctx, "merchant_id")
	if err != nil {
		writeError(ctx, 400, "invalid merchant_id")
		return
	}
	limit, offset := paging(ctx)

	items, total, err := h.svc.ListClients(ctx, merchantID, limit, offset)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, clientListResponse{Items: items, Total: total})
}

func (h *LoyaltyHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	merchantID, clientID, ok := pathPair(ctx)
	if !ok {
		return
	}
	limit, offset := paging(ctx)

	items, total, err := h.svc.History(ctx, merchantID, clientID, limit, offset)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, transactionListResponse{Items: items, Total: total})
}

func (h *LoyaltyHandler) DeleteClient(ctx *xhttp.RequestCtx) {
	merchantID, clientID, ok := pathPair(ctx)
	if !ok {
		return
	}
	if err := h.svc.DeleteClient(ctx, merchantID, clientID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(204)
}

func (h *LoyaltyHandler) IssuePresence(ctx *xhttp.RequestCtx) {
	merchantID, clientID, ok := pathPair(ctx)
	if !ok {
		return
	}
	// the client must exist under this merchant before a token is minted
	if _, err := h.svc.GetClient(ctx, merchantID, clientID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	token, err := h.presence.Issue(ctx, clientID)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 201, presenceResponse{Token: token})
}

/* --------------------------------- Helpers ----------------------------------- */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError translates service sentinels into HTTP statuses.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrMerchantNotFound),
		errors.Is(err, services.ErrClientNotFound),
		errors.Is(err, services.ErrEndUserNotFound),
		errors.Is(err, services.ErrVoucherNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrPinRequired),
		errors.Is(err, services.ErrPinIncorrect):
		writeError(ctx, 401, err.Error())
	case errors.Is(err, services.ErrClientBlocked):
		writeError(ctx, 403, err.Error())
	case errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrNegativeBalance),
		errors.Is(err, services.ErrSelfMerge),
		errors.Is(err, services.ErrNothingToGift),
		errors.Is(err, services.ErrVoucherAlreadyClaimed),
		errors.Is(err, services.ErrVoucherExpired):
		writeError(ctx, 409, err.Error())
	case errors.Is(err, services.ErrInvalidIdentifier),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrZeroAdjustment),
		errors.Is(err, services.ErrReasonRequired):
		writeError(ctx, 400, err.Error())
	default:
		writeError(ctx, 500, err.Error())
	}
}

func param(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

// pathPair reads the merchant_id/client_id pair every client-scoped route
// carries; writes the 400 itself on a bad value.
func pathPair(ctx *xhttp.RequestCtx) (merchantID, clientID int64, ok bool) {
	merchantID, err := param(ctx, "merchant_id")
	if err != nil {
		writeError(ctx, 400, "invalid merchant_id")
		return 0, 0, false
	}
	clientID, err = param(ctx, "client_id")
	if err != nil {
		writeError(ctx, 400, "invalid client_id")
		return 0, 0, false
	}
	return merchantID, clientID, true
}

func paging(ctx *xhttp.RequestCtx) (limit, offset int) {
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			offset = n
		}
	}
	return limit, offset
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
