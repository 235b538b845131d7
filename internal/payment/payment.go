// Package payment creates checkout preferences with the payment provider and
// translates provider callbacks into order transitions.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Provider status vocabulary carried by callbacks.
const (
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
	StatusInProcess = "in_process"
)

type Action int

const (
	// ActionRecord stores the payment status without changing the order.
	ActionRecord Action = iota
	ActionConfirm
	ActionCancel
)

var ErrUnknownStatus = errors.New("unknown payment status")

// MapStatus converts a provider status into the order action it triggers.
func MapStatus(status string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusApproved:
		return ActionConfirm, nil
	case StatusRejected, StatusCancelled:
		return ActionCancel, nil
	case StatusPending, StatusInProcess:
		return ActionRecord, nil
	}
	return ActionRecord, ErrUnknownStatus
}

// Callback is a provider notification about an order's payment.
// ExternalReference is the order id.
type Callback struct {
	ExternalReference string
	PaymentID         string
	Status            string
	Method            string
	Amount            decimal.Decimal
}

type PreferenceRequest struct {
	OrderID     string
	CustomerUID string
	Title       string
	Quantity    int64
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	Currency    string
}

type Preference struct {
	ID          string
	CheckoutURL string
}

type Gateway interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
}

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// ToMinorUnits converts an amount into the smallest currency unit.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(v int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(v)
	}
	return decimal.New(v, -2)
}
