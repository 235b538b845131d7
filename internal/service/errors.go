package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shinyyama/foodrescue-backend/internal/eligibility"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrUnavailable          = errors.New("pack unavailable")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrExternal             = errors.New("external service failure")
	ErrValidation           = errors.New("validation failed")
	ErrUnknownPaymentStatus = errors.New("unknown payment status")
)

// UnavailableError lists why a pack cannot be purchased right now.
type UnavailableError struct {
	Reasons []eligibility.Reason
}

func (e *UnavailableError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrUnavailable.Error()
	}
	return fmt.Sprintf("%s: %s", ErrUnavailable, strings.Join(eligibility.Codes(e.Reasons), ","))
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// InvalidTransitionError reports the status an order was found in.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func external(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternal, op, err)
}
