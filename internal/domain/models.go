package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartStatus string

const (
	CartOpen      CartStatus = "OPEN"
	CartConverted CartStatus = "CONVERTED"
	CartAbandoned CartStatus = "ABANDONED"
)

type Cart struct {
	ID      string
	BuyerID string
	Status  CartStatus
	Items   []CartItem
}

// CartItem is a line resolved by the cart collaborator. SellerID is empty for
// platform-owned products.
type CartItem struct {
	ID         string
	VariantID  string
	ProductID  string
	SellerID   string
	CategoryID string
	Quantity   int
	Price      decimal.Decimal
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

type PaymentMethod string

const (
	MethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	MethodExternal       PaymentMethod = "EXTERNAL"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

type Order struct {
	ID            string
	Number        string
	CheckoutID    string
	BuyerID       string
	SellerID      string
	Amount        decimal.Decimal
	Status        OrderStatus
	PaymentMethod PaymentMethod
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []OrderItem
}

type OrderItem struct {
	ID         string
	OrderID    string
	VariantID  string
	ProductID  string
	CategoryID string
	Quantity   int
	Price      decimal.Decimal
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Address struct {
	ID         string `json:"id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	BuyerID    string `json:"buyer_id,omitempty"`
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

type Payment struct {
	ID      string
	OrderID string
	Method  PaymentMethod
	Status  PaymentStatus
	Amount  decimal.Decimal
	TxnRef  string
}

// Transaction is the audit record of a payment attempt.
type Transaction struct {
	ID           string
	PaymentID    string
	OrderID      string
	Status       PaymentStatus
	Amount       decimal.Decimal
	ProviderCode string
	CreatedAt    time.Time
}

type Shipment struct {
	ID                string
	OrderID           string
	Carrier           string
	TrackingNumber    string
	Notes             string
	EstimatedDelivery time.Time
	ShippedAt         *time.Time
	DeliveredAt       *time.Time
}

type Wallet struct {
	ID               string
	SellerID         string
	Balance          decimal.Decimal
	AvailableBalance decimal.Decimal
	PendingBalance   decimal.Decimal
	Currency         string
	UpdatedAt        time.Time
}

// Consistent reports whether balance == available + pending.
func (w Wallet) Consistent() bool {
	return w.Balance.Equal(w.AvailableBalance.Add(w.PendingBalance))
}

type WalletTxType string

const (
	WalletCredit  WalletTxType = "CREDIT"
	WalletDebit   WalletTxType = "DEBIT"
	WalletHold    WalletTxType = "HOLD"
	WalletRelease WalletTxType = "RELEASE"
)

type WalletTxStatus string

const (
	WalletTxPending   WalletTxStatus = "PENDING"
	WalletTxCompleted WalletTxStatus = "COMPLETED"
	WalletTxFailed    WalletTxStatus = "FAILED"
	WalletTxCancelled WalletTxStatus = "CANCELLED"
)

type WalletTransaction struct {
	ID               string
	WalletID         string
	Type             WalletTxType
	Status           WalletTxStatus
	Amount           decimal.Decimal
	GrossAmount      decimal.Decimal
	CommissionRate   decimal.Decimal
	CommissionAmount decimal.Decimal
	OrderID          string
	WithdrawalID     string
	HoldUntil        *time.Time
	Description      string
	CreatedAt        time.Time
}

type WithdrawalMethod string

const (
	WithdrawBankTransfer WithdrawalMethod = "BANK_TRANSFER"
	WithdrawPayPal       WithdrawalMethod = "PAYPAL"
	WithdrawMobileMoney  WithdrawalMethod = "MOBILE_MONEY"
)

func (m WithdrawalMethod) Valid() bool {
	switch m {
	case WithdrawBankTransfer, WithdrawPayPal, WithdrawMobileMoney:
		return true
	}
	return false
}

type Withdrawal struct {
	ID            string
	WalletID      string
	SellerID      string
	Amount        decimal.Decimal
	Method        WithdrawalMethod
	Details       map[string]string
	Status        WithdrawalStatus
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   *time.Time
}

type Commission struct {
	CategoryID  string
	Rate        decimal.Decimal
	Description string
}

type CheckoutStatus string

const (
	CheckoutPending   CheckoutStatus = "PENDING"
	CheckoutCompleted CheckoutStatus = "COMPLETED"
	CheckoutFailed    CheckoutStatus = "FAILED"
)

// PendingCheckout parks an external-gateway checkout until the provider calls back.
type PendingCheckout struct {
	TxnRef       string
	CheckoutID   string
	BuyerID      string
	CartID       string
	Amount       decimal.Decimal
	Address      Address
	Notes        string
	Status       CheckoutStatus
	ProviderCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the authenticated caller, resolved upstream.
type Actor struct {
	UserID string
	Role   Role
}

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
