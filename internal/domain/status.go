package domain

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderAccepted  OrderStatus = "ACCEPTED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:   {OrderAccepted: true, OrderRejected: true, OrderCancelled: true},
	OrderAccepted:  {OrderShipped: true, OrderCancelled: true},
	OrderShipped:   {OrderDelivered: true, OrderCompleted: true},
	OrderDelivered: {OrderCompleted: true},
	OrderRejected:  {},
	OrderCancelled: {},
	OrderCompleted: {},
}

func CanTransition(from, to OrderStatus) bool {
	return orderNext[from][to]
}

func (s OrderStatus) Terminal() bool {
	return s == OrderRejected || s == OrderCancelled || s == OrderCompleted
}

// Settles reports whether reaching s credits the seller wallet.
func (s OrderStatus) Settles() bool {
	return s == OrderDelivered || s == OrderCompleted
}

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "PENDING"
	WithdrawalProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalCompleted  WithdrawalStatus = "COMPLETED"
	WithdrawalFailed     WithdrawalStatus = "FAILED"
	WithdrawalCancelled  WithdrawalStatus = "CANCELLED"
)

var withdrawalNext = map[WithdrawalStatus]map[WithdrawalStatus]bool{
	WithdrawalPending:    {WithdrawalProcessing: true, WithdrawalCancelled: true},
	WithdrawalProcessing: {WithdrawalCompleted: true, WithdrawalFailed: true},
	WithdrawalCompleted:  {},
	WithdrawalFailed:     {},
	WithdrawalCancelled:  {},
}

func CanTransitionWithdrawal(from, to WithdrawalStatus) bool {
	return withdrawalNext[from][to]
}

// ReturnsFunds reports whether reaching s gives the reserved amount back.
func (s WithdrawalStatus) ReturnsFunds() bool {
	return s == WithdrawalFailed || s == WithdrawalCancelled
}
