package apperr

import (
	"errors"
	"fmt"
)

// Kind is the stable, user-visible category of a failure.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindInvalidTransition   Kind = "invalid_transition"
	KindUnauthorized        Kind = "unauthorized"
	KindPaymentVerification Kind = "payment_verification"
	KindPaymentInitiation   Kind = "payment_initiation"
	KindNotFound            Kind = "not_found"
	KindEmptyCart           Kind = "empty_cart"
	KindConflict            Kind = "conflict"
	KindInternal            Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock}
	ErrInsufficientFunds   = &Error{Kind: KindInsufficientFunds}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrPaymentVerification = &Error{Kind: KindPaymentVerification}
	ErrPaymentInitiation   = &Error{Kind: KindPaymentInitiation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrEmptyCart           = &Error{Kind: KindEmptyCart}
	ErrConflict            = &Error{Kind: KindConflict}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(entity, from, to string) error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		Details: map[string]string{"from": from, "to": to},
	}
}

func PaymentVerification(format string, args ...any) error {
	return &Error{Kind: KindPaymentVerification, Message: fmt.Sprintf(format, args...)}
}

func PaymentInitiation(err error) error {
	return &Error{Kind: KindPaymentInitiation, Message: "payment could not be initiated", Err: err}
}

func EmptyCart() error {
	return &Error{Kind: KindEmptyCart, Message: "cart is empty"}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// StockShortage describes one cart line that cannot be fulfilled.
type StockShortage struct {
	VariantID string `json:"variant_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

func InsufficientStock(items []StockShortage) error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for %d item(s)", len(items)),
		Details: items,
	}
}

// FundsShortage is the detail payload of an insufficient-funds error.
type FundsShortage struct {
	Requested string `json:"requested"`
	Available string `json:"available"`
}

func InsufficientFunds(requested, available string) error {
	return &Error{
		Kind:    KindInsufficientFunds,
		Message: "requested amount exceeds available balance",
		Details: FundsShortage{Requested: requested, Available: available},
	}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
