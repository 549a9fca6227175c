package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/lifecycle"
	"github.com/ariefcatur/go-marketplace-settlement/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// orderStatusResp is the cached shape served by GET /orders/{id}.
type orderStatusResp struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type transitionReq struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	Reason         string `json:"reason"`
}

type transitionResp struct {
	Order    orderResp     `json:"order"`
	From     string        `json:"from"`
	Changed  bool          `json:"changed"`
	Credited *walletTxResp `json:"credited,omitempty"`
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cacheStatus(ctx, o))
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	action, ok := lifecycle.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		badRequest(w, "unknown action")
		return
	}
	var req transitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Orders.Transition(ctx, actor, chi.URLParam(r, "id"), lifecycle.TransitionRequest{
		Action:         action,
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		Reason:         req.Reason,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if res.Changed {
		h.cacheStatus(ctx, res.Order)
	}

	body := transitionResp{Order: toOrderResp(res.Order), From: string(res.From), Changed: res.Changed}
	if res.Credited != nil {
		c := toWalletTxResp(*res.Credited)
		body.Credited = &c
	}
	writeJSON(w, http.StatusOK, body)
}

// cacheStatus overwrites the status cache entry; failures only cost a
// database read on the next lookup.
func (h *Handler) cacheStatus(ctx context.Context, o domain.Order) orderStatusResp {
	out := orderStatusResp{OrderID: o.ID, OrderNumber: o.Number, Status: string(o.Status), UpdatedAt: o.UpdatedAt}
	b, _ := json.Marshal(out)
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	if err := h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err(); err != nil {
		h.Logger.Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	return out
}
