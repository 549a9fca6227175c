// Package memstore is an in-memory domain.UnitOfWork. Units of work are
// serialised behind one mutex, which stands in for the row locks taken by
// the Postgres store, and a failed unit of work restores the prior state.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Variant struct {
	ID        string
	ProductID string
	Stock     int
}

type state struct {
	carts       map[string]domain.Cart
	variants    map[string]Variant
	sales       map[string]int // product id -> sales counter
	orders      map[string]domain.Order
	payments    map[string]domain.Payment // by order id
	txns        []domain.Transaction
	shipments   map[string]domain.Shipment // by order id
	addresses   []domain.Address
	checkouts   map[string]domain.PendingCheckout
	wallets     map[string]domain.Wallet // by seller id
	walletTxs   []domain.WalletTransaction
	withdrawals map[string]domain.Withdrawal
	commissions map[string]domain.Commission
	outbox      []domain.OutboxEvent
}

func newState() state {
	return state{
		carts:       map[string]domain.Cart{},
		variants:    map[string]Variant{},
		sales:       map[string]int{},
		orders:      map[string]domain.Order{},
		payments:    map[string]domain.Payment{},
		shipments:   map[string]domain.Shipment{},
		checkouts:   map[string]domain.PendingCheckout{},
		wallets:     map[string]domain.Wallet{},
		withdrawals: map[string]domain.Withdrawal{},
		commissions: map[string]domain.Commission{},
	}
}

func (s state) clone() state {
	c := state{
		carts:       make(map[string]domain.Cart, len(s.carts)),
		variants:    maps.Clone(s.variants),
		sales:       maps.Clone(s.sales),
		orders:      make(map[string]domain.Order, len(s.orders)),
		payments:    maps.Clone(s.payments),
		txns:        slices.Clone(s.txns),
		shipments:   maps.Clone(s.shipments),
		addresses:   slices.Clone(s.addresses),
		checkouts:   maps.Clone(s.checkouts),
		wallets:     maps.Clone(s.wallets),
		walletTxs:   slices.Clone(s.walletTxs),
		withdrawals: make(map[string]domain.Withdrawal, len(s.withdrawals)),
		commissions: maps.Clone(s.commissions),
		outbox:      slices.Clone(s.outbox),
	}
	for k, v := range s.carts {
		v.Items = slices.Clone(v.Items)
		c.carts[k] = v
	}
	for k, v := range s.orders {
		v.Items = slices.Clone(v.Items)
		c.orders[k] = v
	}
	for k, v := range s.withdrawals {
		v.Details = maps.Clone(v.Details)
		c.withdrawals[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st state
}

func New() *Store { return &Store{st: newState()} }

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, r domain.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	if err := fn(ctx, s.repos()); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) repos() domain.Repos {
	return domain.Repos{
		Carts:       cartRepo{s},
		Stock:       stockRepo{s},
		Orders:      orderRepo{s},
		Checkouts:   checkoutRepo{s},
		Wallets:     walletRepo{s},
		Withdrawals: withdrawalRepo{s},
		Commissions: commissionRepo{s},
		Outbox:      outboxRepo{s},
	}
}

// Seeding and inspection helpers. They take the store lock themselves and
// must not be called from inside Do.

func (s *Store) PutVariant(v Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.variants[v.ID] = v
}

func (s *Store) PutCart(c domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Status == "" {
		c.Status = domain.CartOpen
	}
	for i := range c.Items {
		if c.Items[i].ID == "" {
			c.Items[i].ID = uuid.NewString()
		}
	}
	c.Items = slices.Clone(c.Items)
	s.st.carts[c.ID] = c
}

func (s *Store) PutCommission(c domain.Commission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.commissions[c.CategoryID] = c
}

func (s *Store) PutWallet(w domain.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	s.st.wallets[w.SellerID] = w
}

func (s *Store) PutWalletTx(t domain.WalletTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.st.walletTxs = append(s.st.walletTxs, t)
}

func (s *Store) PutOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Items = slices.Clone(o.Items)
	s.st.orders[o.ID] = o
	s.st.shipments[o.ID] = domain.Shipment{ID: uuid.NewString(), OrderID: o.ID}
}

func (s *Store) Stock(variantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.variants[variantID].Stock
}

func (s *Store) Sales(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.sales[productID]
}

func (s *Store) Cart(id string) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.carts[id]
}

// Orders returns every order sorted by number.
func (s *Store) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.st.orders))
	for _, o := range s.st.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (s *Store) Payment(orderID string) (domain.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.payments[orderID]
	return p, ok
}

func (s *Store) Shipment(orderID string) (domain.Shipment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.st.shipments[orderID]
	return sh, ok
}

func (s *Store) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.txns)
}

func (s *Store) Addresses() []domain.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.addresses)
}

func (s *Store) Checkout(txnRef string) (domain.PendingCheckout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.st.checkouts[txnRef]
	return pc, ok
}

func (s *Store) Wallet(sellerID string) (domain.Wallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.st.wallets[sellerID]
	return w, ok
}

func (s *Store) WalletTxs() []domain.WalletTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.walletTxs)
}

func (s *Store) Withdrawals() []domain.Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Withdrawal, 0, len(s.st.withdrawals))
	for _, w := range s.st.withdrawals {
		out = append(out, w)
	}
	return out
}

func (s *Store) Outbox() []domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.outbox)
}

type cartRepo struct{ s *Store }

func (r cartRepo) LockOpenByBuyer(_ context.Context, buyerID string) (*domain.Cart, error) {
	for _, c := range r.s.st.carts {
		if c.BuyerID == buyerID && c.Status == domain.CartOpen {
			c.Items = slices.Clone(c.Items)
			return &c, nil
		}
	}
	return nil, apperr.NotFound("cart", buyerID)
}

func (r cartRepo) LockByID(_ context.Context, cartID string) (*domain.Cart, error) {
	c, ok := r.s.st.carts[cartID]
	if !ok {
		return nil, apperr.NotFound("cart", cartID)
	}
	c.Items = slices.Clone(c.Items)
	return &c, nil
}

func (r cartRepo) Convert(_ context.Context, cartID string) error {
	c, ok := r.s.st.carts[cartID]
	if !ok {
		return apperr.NotFound("cart", cartID)
	}
	c.Items = nil
	c.Status = domain.CartConverted
	r.s.st.carts[cartID] = c
	return nil
}

type stockRepo struct{ s *Store }

func (r stockRepo) LockVariants(_ context.Context, ids []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		if v, ok := r.s.st.variants[id]; ok {
			out[id] = v.Stock
		}
	}
	return out, nil
}

func (r stockRepo) Decrement(_ context.Context, variantID string, qty int) error {
	v, ok := r.s.st.variants[variantID]
	if !ok || v.Stock < qty {
		return apperr.InsufficientStock([]apperr.StockShortage{{VariantID: variantID, Required: qty, Available: v.Stock}})
	}
	v.Stock -= qty
	r.s.st.variants[variantID] = v
	return nil
}

func (r stockRepo) Increment(_ context.Context, variantID string, qty int) error {
	v, ok := r.s.st.variants[variantID]
	if !ok {
		return apperr.NotFound("variant", variantID)
	}
	v.Stock += qty
	r.s.st.variants[variantID] = v
	return nil
}

func (r stockRepo) AddSales(_ context.Context, productID string, delta int) error {
	n := r.s.st.sales[productID] + delta
	if n < 0 {
		n = 0
	}
	r.s.st.sales[productID] = n
	return nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) Insert(_ context.Context, o *domain.Order) (bool, error) {
	for _, existing := range r.s.st.orders {
		if existing.Number == o.Number {
			return false, nil
		}
	}
	cp := *o
	cp.Items = nil
	r.s.st.orders[o.ID] = cp
	return true, nil
}

func (r orderRepo) InsertItems(_ context.Context, items []domain.OrderItem) error {
	for _, it := range items {
		o, ok := r.s.st.orders[it.OrderID]
		if !ok {
			return apperr.NotFound("order", it.OrderID)
		}
		o.Items = append(o.Items, it)
		r.s.st.orders[it.OrderID] = o
	}
	return nil
}

func (r orderRepo) InsertPayment(_ context.Context, p *domain.Payment) error {
	r.s.st.payments[p.OrderID] = *p
	return nil
}

func (r orderRepo) InsertTransaction(_ context.Context, t *domain.Transaction) error {
	r.s.st.txns = append(r.s.st.txns, *t)
	return nil
}

func (r orderRepo) InsertShipment(_ context.Context, sh *domain.Shipment) error {
	r.s.st.shipments[sh.OrderID] = *sh
	return nil
}

func (r orderRepo) InsertAddress(_ context.Context, a *domain.Address) error {
	r.s.st.addresses = append(r.s.st.addresses, *a)
	return nil
}

func (r orderRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (r orderRepo) Lock(ctx context.Context, id string) (*domain.Order, error) {
	return r.Get(ctx, id)
}

func (r orderRepo) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, at time.Time) error {
	o, ok := r.s.st.orders[id]
	if !ok {
		return apperr.NotFound("order", id)
	}
	o.Status = status
	o.UpdatedAt = at
	r.s.st.orders[id] = o
	return nil
}

func (r orderRepo) MarkShipped(_ context.Context, orderID, carrier, tracking string, at time.Time) error {
	sh := r.s.st.shipments[orderID]
	sh.Carrier, sh.TrackingNumber = carrier, tracking
	sh.ShippedAt = &at
	r.s.st.shipments[orderID] = sh
	return nil
}

func (r orderRepo) MarkDelivered(_ context.Context, orderID string, at time.Time) error {
	sh := r.s.st.shipments[orderID]
	sh.DeliveredAt = &at
	r.s.st.shipments[orderID] = sh
	return nil
}

type checkoutRepo struct{ s *Store }

func (r checkoutRepo) Insert(_ context.Context, pc *domain.PendingCheckout) error {
	if _, ok := r.s.st.checkouts[pc.TxnRef]; ok {
		return apperr.Conflict("transaction reference %s already used", pc.TxnRef)
	}
	r.s.st.checkouts[pc.TxnRef] = *pc
	return nil
}

func (r checkoutRepo) Lock(_ context.Context, txnRef string) (*domain.PendingCheckout, error) {
	pc, ok := r.s.st.checkouts[txnRef]
	if !ok {
		return nil, apperr.NotFound("checkout", txnRef)
	}
	return &pc, nil
}

func (r checkoutRepo) UpdateStatus(_ context.Context, txnRef string, status domain.CheckoutStatus, code string, at time.Time) error {
	pc, ok := r.s.st.checkouts[txnRef]
	if !ok {
		return apperr.NotFound("checkout", txnRef)
	}
	pc.Status, pc.ProviderCode, pc.UpdatedAt = status, code, at
	r.s.st.checkouts[txnRef] = pc
	return nil
}

type walletRepo struct{ s *Store }

func (r walletRepo) Ensure(_ context.Context, sellerID, currency string) error {
	if _, ok := r.s.st.wallets[sellerID]; ok {
		return nil
	}
	r.s.st.wallets[sellerID] = domain.Wallet{
		ID:               uuid.NewString(),
		SellerID:         sellerID,
		Balance:          decimal.Zero,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
		Currency:         currency,
	}
	return nil
}

func (r walletRepo) LockBySeller(_ context.Context, sellerID string) (*domain.Wallet, error) {
	w, ok := r.s.st.wallets[sellerID]
	if !ok {
		return nil, apperr.NotFound("wallet", sellerID)
	}
	return &w, nil
}

func (r walletRepo) UpdateBalances(_ context.Context, w *domain.Wallet) error {
	r.s.st.wallets[w.SellerID] = *w
	return nil
}

func (r walletRepo) InsertTx(_ context.Context, t *domain.WalletTransaction) error {
	if t.Type == domain.WalletCredit && t.OrderID != "" {
		for _, existing := range r.s.st.walletTxs {
			if existing.Type == domain.WalletCredit && existing.OrderID == t.OrderID {
				return apperr.Conflict("order %s already credited", t.OrderID)
			}
		}
	}
	r.s.st.walletTxs = append(r.s.st.walletTxs, *t)
	return nil
}

func (r walletRepo) SetTxStatus(_ context.Context, id string, status domain.WalletTxStatus) error {
	for i := range r.s.st.walletTxs {
		if r.s.st.walletTxs[i].ID == id {
			r.s.st.walletTxs[i].Status = status
			return nil
		}
	}
	return apperr.NotFound("wallet transaction", id)
}

func (r walletRepo) HasCredit(_ context.Context, orderID string) (bool, error) {
	for _, t := range r.s.st.walletTxs {
		if t.Type == domain.WalletCredit && t.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (r walletRepo) DueCredits(_ context.Context, walletID string, now time.Time) ([]domain.WalletTransaction, error) {
	var out []domain.WalletTransaction
	for _, t := range r.s.st.walletTxs {
		if t.WalletID == walletID && t.Type == domain.WalletCredit && t.Status == domain.WalletTxPending &&
			t.HoldUntil != nil && !t.HoldUntil.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r walletRepo) HoldFor(_ context.Context, withdrawalID string) (*domain.WalletTransaction, error) {
	for _, t := range r.s.st.walletTxs {
		if t.WithdrawalID == withdrawalID && t.Type == domain.WalletHold {
			return &t, nil
		}
	}
	return nil, apperr.NotFound("withdrawal hold", withdrawalID)
}

func (r walletRepo) ListTx(_ context.Context, walletID string, limit, offset int) ([]domain.WalletTransaction, int, error) {
	var all []domain.WalletTransaction
	for _, t := range r.s.st.walletTxs {
		if t.WalletID == walletID {
			all = append(all, t)
		}
	}
	// newest first; insertion order breaks ties
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), len(all), nil
}

type withdrawalRepo struct{ s *Store }

func (r withdrawalRepo) Insert(_ context.Context, w *domain.Withdrawal) error {
	cp := *w
	cp.Details = maps.Clone(w.Details)
	r.s.st.withdrawals[w.ID] = cp
	return nil
}

func (r withdrawalRepo) Lock(_ context.Context, id string) (*domain.Withdrawal, error) {
	w, ok := r.s.st.withdrawals[id]
	if !ok {
		return nil, apperr.NotFound("withdrawal", id)
	}
	w.Details = maps.Clone(w.Details)
	return &w, nil
}

func (r withdrawalRepo) Update(_ context.Context, w *domain.Withdrawal) error {
	if _, ok := r.s.st.withdrawals[w.ID]; !ok {
		return apperr.NotFound("withdrawal", w.ID)
	}
	cp := *w
	cp.Details = maps.Clone(w.Details)
	r.s.st.withdrawals[w.ID] = cp
	return nil
}

func (r withdrawalRepo) ListBySeller(_ context.Context, sellerID string, limit, offset int) ([]domain.Withdrawal, int, error) {
	var all []domain.Withdrawal
	for _, w := range r.s.st.withdrawals {
		if w.SellerID == sellerID {
			all = append(all, w)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, limit, offset), len(all), nil
}

type commissionRepo struct{ s *Store }

func (r commissionRepo) Get(_ context.Context, categoryID string) (domain.Commission, bool, error) {
	c, ok := r.s.st.commissions[categoryID]
	return c, ok, nil
}

func (r commissionRepo) Upsert(_ context.Context, c domain.Commission) error {
	r.s.st.commissions[c.CategoryID] = c
	return nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Enqueue(_ context.Context, e domain.OutboxEvent) error {
	r.s.st.outbox = append(r.s.st.outbox, e)
	return nil
}

func (r outboxRepo) LockPending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	var out []domain.OutboxEvent
	for _, e := range r.s.st.outbox {
		if e.PublishedAt == nil {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	for i := range r.s.st.outbox {
		if slices.Contains(ids, r.s.st.outbox[i].ID) {
			t := at
			r.s.st.outbox[i].PublishedAt = &t
		}
	}
	return nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
