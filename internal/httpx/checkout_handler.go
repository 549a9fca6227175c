package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/checkout"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/payment"
	"github.com/ariefcatur/go-marketplace-settlement/internal/redisx"
	"go.uber.org/zap"
)

type checkoutReq struct {
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Address       domain.Address       `json:"address"`
	Notes         string               `json:"notes"`
}

type checkoutResp struct {
	CheckoutID string      `json:"checkout_id"`
	TxnRef     string      `json:"txn_ref,omitempty"`
	Amount     string      `json:"amount"`
	PaymentURL string      `json:"payment_url,omitempty"`
	Orders     []orderResp `json:"orders,omitempty"`
}

// storedResponse is what an Idempotency-Key replays.
type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	req.PaymentMethod = domain.PaymentMethod(strings.ToUpper(string(req.PaymentMethod)))

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	// Fast-path replay via Redis; the database stays the source of truth.
	var idemKey string
	if k := r.Header.Get("Idempotency-Key"); k != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemCheckout, actor.UserID, k)
		if s, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && s != "" {
			var stored storedResponse
			if json.Unmarshal([]byte(s), &stored) == nil {
				w.Header().Set("Idempotent-Replayed", "true")
				writeJSON(w, stored.Status, stored.Body)
				return
			}
		}
	}

	res, err := h.Checkout.Checkout(ctx, checkout.Request{
		BuyerID:  actor.UserID,
		Method:   req.PaymentMethod,
		Address:  req.Address,
		Notes:    req.Notes,
		ClientIP: clientIP(r),
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	code := http.StatusCreated
	body := checkoutResp{CheckoutID: res.CheckoutID, TxnRef: res.TxnRef, Amount: res.Amount.StringFixed(2)}
	if res.Deferred {
		code = http.StatusAccepted
		body.PaymentURL = res.PaymentURL
	} else {
		body.Orders = toOrderResps(res.Orders)
		for _, o := range res.Orders {
			h.cacheStatus(ctx, o)
		}
	}

	if idemKey != "" {
		raw, _ := json.Marshal(body)
		stored, _ := json.Marshal(storedResponse{Status: code, Body: raw})
		if err := h.Redis.Set(ctx, idemKey, stored, redisx.TTLIdempotency).Err(); err != nil {
			h.Logger.Warn("idempotency store failed", zap.String("key", idemKey), zap.Error(err))
		}
	}
	writeJSON(w, code, body)
}

type callbackResp struct {
	TxnRef  string      `json:"txn_ref"`
	Outcome string      `json:"outcome"`
	Status  string      `json:"status"`
	Orders  []orderResp `json:"orders,omitempty"`
}

// paymentCallback accepts the provider's signed fields as a query string,
// a form body or a flat JSON object.
func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	fields, err := callbackFields(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	if ref := fields[payment.FieldTxnRef]; ref != "" {
		lock := fmt.Sprintf(redisx.KeyCallbackLock, ref)
		ok, err := redisx.Claim(ctx, h.Redis, lock, redisx.TTLCallbackLock)
		switch {
		case err != nil:
			h.Logger.Warn("callback lock unavailable", zap.String("txn_ref", ref), zap.Error(err))
		case !ok:
			writeError(w, h.Logger, apperr.Conflict("callback for %s is already being processed", ref))
			return
		default:
			defer func() { _ = redisx.Release(context.WithoutCancel(ctx), h.Redis, lock) }()
		}
	}

	res, err := h.Checkout.HandleCallback(ctx, fields)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	for _, o := range res.Orders {
		h.cacheStatus(ctx, o)
	}
	writeJSON(w, http.StatusOK, callbackResp{
		TxnRef:  res.TxnRef,
		Outcome: string(res.Outcome),
		Status:  string(res.Status),
		Orders:  toOrderResps(res.Orders),
	})
}

func callbackFields(r *http.Request) (map[string]string, error) {
	fields := map[string]string{}
	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.New("invalid json")
		}
		for k, v := range raw {
			switch t := v.(type) {
			case string:
				fields[k] = t
			case json.Number:
				fields[k] = t.String()
			case nil:
			default:
				fields[k] = fmt.Sprint(t)
			}
		}
		return fields, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, errors.New("invalid form")
	}
	for k, v := range r.Form {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
