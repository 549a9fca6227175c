package domain

import (
	"context"
	"time"
)

// Repos is the set of repositories bound to one unit of work. Every Lock*
// method takes a row lock held until the unit of work ends.
type Repos struct {
	Carts       CartRepository
	Stock       StockRepository
	Orders      OrderRepository
	Checkouts   CheckoutRepository
	Wallets     WalletRepository
	Withdrawals WithdrawalRepository
	Commissions CommissionRepository
	Outbox      OutboxRepository
}

// UnitOfWork runs fn inside one transaction. fn returning an error rolls back
// everything it did.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

type CartRepository interface {
	LockOpenByBuyer(ctx context.Context, buyerID string) (*Cart, error)
	LockByID(ctx context.Context, cartID string) (*Cart, error)
	// Convert removes every item and marks the cart CONVERTED.
	Convert(ctx context.Context, cartID string) error
}

type StockRepository interface {
	// LockVariants returns current stock keyed by variant id. Unknown ids are absent.
	LockVariants(ctx context.Context, variantIDs []string) (map[string]int, error)
	Decrement(ctx context.Context, variantID string, qty int) error
	Increment(ctx context.Context, variantID string, qty int) error
	AddSales(ctx context.Context, productID string, delta int) error
}

type OrderRepository interface {
	// Insert reports false when the order number is already taken.
	Insert(ctx context.Context, o *Order) (bool, error)
	InsertItems(ctx context.Context, items []OrderItem) error
	InsertPayment(ctx context.Context, p *Payment) error
	InsertTransaction(ctx context.Context, t *Transaction) error
	InsertShipment(ctx context.Context, s *Shipment) error
	InsertAddress(ctx context.Context, a *Address) error
	Get(ctx context.Context, id string) (*Order, error)
	Lock(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus, at time.Time) error
	MarkShipped(ctx context.Context, orderID, carrier, tracking string, at time.Time) error
	MarkDelivered(ctx context.Context, orderID string, at time.Time) error
}

type CheckoutRepository interface {
	Insert(ctx context.Context, pc *PendingCheckout) error
	Lock(ctx context.Context, txnRef string) (*PendingCheckout, error)
	UpdateStatus(ctx context.Context, txnRef string, status CheckoutStatus, code string, at time.Time) error
}

type WalletRepository interface {
	// Ensure creates an empty wallet for the seller unless one exists.
	Ensure(ctx context.Context, sellerID, currency string) error
	LockBySeller(ctx context.Context, sellerID string) (*Wallet, error)
	UpdateBalances(ctx context.Context, w *Wallet) error
	InsertTx(ctx context.Context, t *WalletTransaction) error
	SetTxStatus(ctx context.Context, id string, status WalletTxStatus) error
	HasCredit(ctx context.Context, orderID string) (bool, error)
	// DueCredits locks PENDING credits whose hold expired at or before now.
	DueCredits(ctx context.Context, walletID string, now time.Time) ([]WalletTransaction, error)
	HoldFor(ctx context.Context, withdrawalID string) (*WalletTransaction, error)
	ListTx(ctx context.Context, walletID string, limit, offset int) ([]WalletTransaction, int, error)
}

type WithdrawalRepository interface {
	Insert(ctx context.Context, w *Withdrawal) error
	Lock(ctx context.Context, id string) (*Withdrawal, error)
	Update(ctx context.Context, w *Withdrawal) error
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]Withdrawal, int, error)
}

type CommissionRepository interface {
	// Get reports false when no rate is configured for the category.
	Get(ctx context.Context, categoryID string) (Commission, bool, error)
	Upsert(ctx context.Context, c Commission) error
}

type OutboxEvent struct {
	ID          string
	Topic       string
	Key         string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, e OutboxEvent) error
	// LockPending claims unpublished events, skipping rows held by another relay.
	LockPending(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}
