// Package eligibility decides whether a pack can be listed and purchased.
//
// Every read path (listing, detail, reservation) goes through Evaluate so the
// rules live in one place.
package eligibility

import (
	"time"

	"github.com/shinyyama/foodrescue-backend/internal/model"
)

// Reason is a stable code describing why a pack cannot be purchased.
type Reason string

const (
	ReasonPackInactive             Reason = "PACK_INACTIVE"
	ReasonSoldOut                  Reason = "SOLD_OUT"
	ReasonNotYetAvailable          Reason = "NOT_YET_AVAILABLE"
	ReasonExpired                  Reason = "EXPIRED"
	ReasonEstablishmentInactive    Reason = "ESTABLISHMENT_INACTIVE"
	ReasonEstablishmentNotApproved Reason = "ESTABLISHMENT_NOT_APPROVED"
)

// Message returns a human readable description of the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonPackInactive:
		return "this pack is no longer offered"
	case ReasonSoldOut:
		return "this pack is sold out"
	case ReasonNotYetAvailable:
		return "this pack is not available yet"
	case ReasonExpired:
		return "this pack is no longer available"
	case ReasonEstablishmentInactive:
		return "the establishment is not operating"
	case ReasonEstablishmentNotApproved:
		return "the establishment has not been verified"
	}
	return string(r)
}

// Evaluate returns every condition blocking the purchase of p. An empty result
// means the pack is purchasable at now. The window is inclusive on both ends.
func Evaluate(p model.Pack, e model.Establishment, now time.Time) []Reason {
	reasons := make([]Reason, 0, 2)
	if !p.IsActive {
		reasons = append(reasons, ReasonPackInactive)
	}
	if p.Quantity <= 0 {
		reasons = append(reasons, ReasonSoldOut)
	}
	if now.Before(p.AvailableFrom) {
		reasons = append(reasons, ReasonNotYetAvailable)
	}
	if now.After(p.AvailableUntil) {
		reasons = append(reasons, ReasonExpired)
	}
	if !e.IsActive {
		reasons = append(reasons, ReasonEstablishmentInactive)
	}
	if e.VerificationStatus != model.VerificationApproved {
		reasons = append(reasons, ReasonEstablishmentNotApproved)
	}
	return reasons
}

func IsPurchasable(p model.Pack, e model.Establishment, now time.Time) bool {
	return len(Evaluate(p, e, now)) == 0
}

// Codes converts reasons to plain strings for transport.
func Codes(reasons []Reason) []string {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, string(r))
	}
	return out
}
