package service

import (
	"time"

	"github.com/shinyyama/foodrescue-backend/internal/model"
)

// pickupDate is the next pickup start at or after now, kept inside the pack's
// availability window. Packs without a pickup time are collected by the end of
// the window.
func pickupDate(p model.Pack, now time.Time) time.Time {
	start, err := time.Parse("15:04", p.PickupTimeStart)
	if err != nil {
		return p.AvailableUntil
	}
	loc := p.AvailableUntil.Location()
	n := now.In(loc)
	at := time.Date(n.Year(), n.Month(), n.Day(), start.Hour(), start.Minute(), 0, 0, loc)
	if at.Before(n) {
		at = at.AddDate(0, 0, 1)
	}
	if at.After(p.AvailableUntil) {
		return p.AvailableUntil
	}
	return at
}
