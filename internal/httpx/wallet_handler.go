package httpx

import (
	"context"
	"net/http"
	"time"
)

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	wl, err := h.Wallet.Balance(ctx, actor.UserID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletResp(wl))
}

func (h *Handler) listWalletTransactions(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	page, limit := pageParams(r)
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Wallet.History(ctx, actor.UserID, page, limit)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	out := pageResp[walletTxResp]{Items: make([]walletTxResp, 0, len(p.Items)), Page: p.Page, Limit: p.Limit, Total: p.Total}
	for _, t := range p.Items {
		out.Items = append(out.Items, toWalletTxResp(t))
	}
	writeJSON(w, http.StatusOK, out)
}
