// Package pricing computes the amount due for a registration. It is pure
// domain logic - no I/O - and the admission path re-runs it server-side
// against trusted catalog data, never accepting a client-computed total.
package pricing

import (
	"time"

	"startline/internal/catalog"
)

// ServiceFeeCents is the flat platform fee added once to any paid total.
// Free races stay free: no fee applies when the subtotal is zero.
const ServiceFeeCents int64 = 99

// SelectedOption is an option the athlete picked on the draft.
type SelectedOption struct {
	OptionID catalog.OptionID
	// ChoiceID is set for question-type options.
	ChoiceID catalog.ChoiceID
	// Quantity applies to checkbox/quantity options; 0 is treated as 1.
	Quantity int
}

// Quote is the result of a resolution.
type Quote struct {
	PeriodID      catalog.PeriodID
	BaseCents     int64
	OptionsCents  int64
	SubtotalCents int64
	FeeCents      int64
	TotalCents    int64
	// MissingPriceEntry flags the zero-price fallback for observability:
	// no PriceEntry matched the license type and active period.
	MissingPriceEntry bool
}

// CurrentPeriod returns the first active period whose window contains now.
// Periods for one race must not overlap; when data violates that invariant
// the first match (in the order supplied) wins.
func CurrentPeriod(periods []catalog.PricingPeriod, now time.Time) (catalog.PricingPeriod, bool) {
	for _, p := range periods {
		if p.Active && p.Contains(now) {
			return p, true
		}
	}
	return catalog.PricingPeriod{}, false
}

// Resolve computes the total for a draft. priceEntry may be nil when no row
// matches the (license type, period) pair; the base is then zero. Options
// must already be filtered to the race being priced.
func Resolve(period catalog.PricingPeriod, priceEntry *catalog.PriceEntry, options []catalog.OptionDefinition, selected []SelectedOption) Quote {
	quote := Quote{PeriodID: period.ID}

	if priceEntry != nil {
		quote.BaseCents = priceEntry.PriceCents
	} else {
		quote.MissingPriceEntry = true
	}

	byID := make(map[catalog.OptionID]catalog.OptionDefinition, len(options))
	for _, o := range options {
		byID[o.ID] = o
	}

	for _, sel := range selected {
		option, ok := byID[sel.OptionID]
		if !ok {
			continue
		}
		if option.IsQuestion {
			quote.OptionsCents += option.PriceCents + choiceModifier(option, sel.ChoiceID)
			continue
		}
		quantity := sel.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		quote.OptionsCents += option.PriceCents * int64(quantity)
	}

	quote.SubtotalCents = quote.BaseCents + quote.OptionsCents
	if quote.SubtotalCents > 0 {
		quote.FeeCents = ServiceFeeCents
	}
	quote.TotalCents = quote.SubtotalCents + quote.FeeCents
	return quote
}

func choiceModifier(option catalog.OptionDefinition, choiceID catalog.ChoiceID) int64 {
	for _, c := range option.Choices {
		if c.ID == choiceID {
			return c.PriceModifierCents
		}
	}
	return 0
}
