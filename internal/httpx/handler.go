package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/checkout"
	"github.com/ariefcatur/go-marketplace-settlement/internal/commission"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/lifecycle"
	"github.com/ariefcatur/go-marketplace-settlement/internal/wallet"
	"github.com/ariefcatur/go-marketplace-settlement/internal/withdrawal"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handler struct {
	Checkout    *checkout.Service
	Orders      *lifecycle.Service
	Wallet      *wallet.Ledger
	Withdrawals *withdrawal.Processor
	Commissions *commission.Registry
	Redis       redis.Cmdable
	Logger      *zap.Logger

	// PaymentTimeout bounds checkout, which may sign a payment redirect.
	PaymentTimeout time.Duration
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments/callback", h.paymentCallback)
		r.Get("/payments/callback", h.paymentCallback)
		r.Get("/orders/{id}", h.getOrder)

		r.Group(func(r chi.Router) {
			r.Use(authenticated(h.Logger))
			r.Post("/checkout", h.checkout)
			r.Post("/orders/{id}/{action}", h.transitionOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated(h.Logger, domain.RoleSeller))
			r.Get("/wallet", h.getWallet)
			r.Get("/wallet/transactions", h.listWalletTransactions)
			r.Post("/withdrawals", h.requestWithdrawal)
			r.Get("/withdrawals", h.listWithdrawals)
			r.Post("/withdrawals/{id}/cancel", h.cancelWithdrawal)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticated(h.Logger, domain.RoleAdmin))
			r.Post("/withdrawals/{id}/{action}", h.adminWithdrawal)
			r.Put("/commissions/{categoryID}", h.setCommission)
		})
	})
}

func (h *Handler) timeout() time.Duration {
	if h.PaymentTimeout > 0 {
		return h.PaymentTimeout
	}
	return 10 * time.Second
}

// pageParams reads ?page=&limit=; bad values fall back to defaults.
func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return wallet.Normalize(page, limit)
}
