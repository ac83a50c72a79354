// Package catalog holds the read-only reference data the registration engine
// consumes: races, pricing periods, price tables, license types, option
// definitions, and federation categories. Organizer tooling owns these
// records; this service only reads them.
package catalog

import "time"

type (
	RaceID        string
	PeriodID      string
	LicenseTypeID string
	OptionID      string
	ChoiceID      string
)

// Gender restriction values for a race.
type Gender string

const (
	GenderAll    Gender = "all"
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Race is a capacity-bounded start list.
type Race struct {
	ID                RaceID
	EventID           string
	Name              string
	Date              time.Time
	Capacity          *int // nil = unlimited
	ConfirmedCount    int
	GenderRestriction Gender
	// CategoryRestriction lists federation category codes allowed to start.
	// Empty means unrestricted.
	CategoryRestriction []string
	IsFederationRace    bool
	FederationCode      string
	OrganizerName       string
	OrganizerEmail      string
}

// PricingPeriod is a time window with its own price table.
// Periods for one race must not overlap; the first active match wins.
type PricingPeriod struct {
	ID        PeriodID
	RaceID    RaceID
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Active    bool
}

// Contains reports whether the window covers the given instant.
func (p PricingPeriod) Contains(t time.Time) bool {
	return !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// LicenseType distinguishes credential forms (federation license vs
// health pass).
type LicenseType struct {
	ID   LicenseTypeID
	Code string
	Name string
}

// License type codes used across the engine.
const (
	LicenseCodeFederation = "federation"
	LicenseCodeHealthPass = "health_pass"
)

// PriceEntry is the base price for one (license type, period) pair.
// Unique per (LicenseTypeID, PeriodID).
type PriceEntry struct {
	RaceID        RaceID
	LicenseTypeID LicenseTypeID
	PeriodID      PeriodID
	PriceCents    int64
}

// OptionChoice is one answer to a question-type option.
type OptionChoice struct {
	ID                 ChoiceID
	Label              string
	PriceModifierCents int64
	// Quota caps how many entries may pick this choice; nil = uncapped.
	Quota     *int
	QuotaUsed int
}

// OptionDefinition is an add-on offered with a race (meal, shuttle, shirt
// size question).
type OptionDefinition struct {
	ID         OptionID
	RaceID     RaceID
	Label      string
	PriceCents int64
	Required   bool
	// IsQuestion options select among Choices; others are quantity based.
	IsQuestion bool
	Choices    []OptionChoice
}

// FederationCategory is an age band defined by the federation.
// MaxAge nil means no upper bound.
type FederationCategory struct {
	Code   string
	Name   string
	MinAge int
	MaxAge *int
}
