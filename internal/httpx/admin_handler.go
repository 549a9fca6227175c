package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

var withdrawalActions = map[string]domain.WithdrawalStatus{
	"process":  domain.WithdrawalProcessing,
	"complete": domain.WithdrawalCompleted,
	"fail":     domain.WithdrawalFailed,
	"cancel":   domain.WithdrawalCancelled,
}

func (h *Handler) adminWithdrawal(w http.ResponseWriter, r *http.Request) {
	to, ok := withdrawalActions[chi.URLParam(r, "action")]
	if !ok {
		badRequest(w, "unknown action")
		return
	}
	h.moveWithdrawal(w, r, to)
}

type commissionReq struct {
	Rate        decimal.Decimal `json:"rate"`
	Description string          `json:"description"`
}

type commissionResp struct {
	CategoryID  string `json:"category_id"`
	Rate        string `json:"rate"`
	Description string `json:"description,omitempty"`
}

func (h *Handler) setCommission(w http.ResponseWriter, r *http.Request) {
	var req commissionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c := domain.Commission{CategoryID: chi.URLParam(r, "categoryID"), Rate: req.Rate, Description: req.Description}
	if err := h.Commissions.Set(ctx, c); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, commissionResp{CategoryID: c.CategoryID, Rate: c.Rate.String(), Description: c.Description})
}
