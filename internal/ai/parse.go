package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	envelopePattern = regexp.MustCompile(`\$\s*([0-9]+(?:\.[0-9]+)?)\s*\$`)
	numberPattern   = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	unitPattern     = regexp.MustCompile(`^[ \t]*((?:kg|g)(?:CO2e?|co2e?)?)\b`)
	ErrParseFailed  = errors.New("parse_failed")
)

// ParseCO2 extracts the estimate from a model reply.
func ParseCO2(text string) (float64, error) {
	val, _, err := ParseCO2WithUnit(text)
	return val, err
}

// ParseCO2WithUnit prefers the $<number>$ envelope and otherwise takes the
// longest number in the text together with the unit that follows it,
// e.g. "about 1200 gCO2e".
func ParseCO2WithUnit(text string) (float64, string, error) {
	if m := envelopePattern.FindStringSubmatchIndex(text); m != nil {
		v, err := strconv.ParseFloat(text[m[2]:m[3]], 64)
		if err != nil {
			return 0, "", fmt.Errorf("%w: %v", ErrParseFailed, err)
		}
		return v, unitAfter(text[m[1]:]), nil
	}
	matches := numberPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return 0, "", fmt.Errorf("%w: no co2 value found", ErrParseFailed)
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m[1]-m[0] > best[1]-best[0] {
			best = m
		}
	}
	v, err := strconv.ParseFloat(text[best[0]:best[1]], 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return v, unitAfter(text[best[1]:]), nil
}

func unitAfter(rest string) string {
	if u := unitPattern.FindStringSubmatch(rest); len(u) >= 2 {
		return strings.TrimSpace(u[1])
	}
	return ""
}
