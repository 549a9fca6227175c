package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/withdrawal"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type withdrawalReq struct {
	Amount  decimal.Decimal   `json:"amount"`
	Method  string            `json:"method"`
	Details map[string]string `json:"details"`
}

type reasonReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	var req withdrawalReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	wd, err := h.Withdrawals.Request(ctx, withdrawal.Request{
		SellerID: actor.UserID,
		Amount:   req.Amount,
		Method:   domain.WithdrawalMethod(strings.ToUpper(req.Method)),
		Details:  req.Details,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalResp(wd))
}

func (h *Handler) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	page, limit := pageParams(r)
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Withdrawals.List(ctx, actor.UserID, page, limit)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	out := pageResp[withdrawalResp]{Items: make([]withdrawalResp, 0, len(p.Items)), Page: p.Page, Limit: p.Limit, Total: p.Total}
	for _, wd := range p.Items {
		out.Items = append(out.Items, toWithdrawalResp(wd))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) cancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.moveWithdrawal(w, r, domain.WithdrawalCancelled)
}

func (h *Handler) moveWithdrawal(w http.ResponseWriter, r *http.Request, to domain.WithdrawalStatus) {
	actor, _ := actorFrom(r.Context())
	var req reasonReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	wd, err := h.Withdrawals.Transition(ctx, actor, chi.URLParam(r, "id"), to, req.Reason)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalResp(wd))
}
