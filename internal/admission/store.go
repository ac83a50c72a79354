package admission

import (
	"context"
	"fmt"

	"startline/internal/catalog"
	"startline/internal/pricing"
)

// PriceFunc recomputes the amount due. The store calls it inside the
// admission transaction so catalog reads see the same snapshot the entry is
// created against.
type PriceFunc func(ctx context.Context) (int64, error)

// AdmitParams is everything the atomic admission step needs.
type AdmitParams struct {
	RaceID         catalog.RaceID
	Athlete        Athlete
	Options        []pricing.SelectedOption
	SessionToken   string
	ManagementCode string
	Price          PriceFunc
}

// AdmitResult reports a successful admission.
type AdmitResult struct {
	EntryID     string
	AmountCents int64
	// PlacesRemaining is nil when the race is unlimited.
	PlacesRemaining *int
}

// DuplicateError signals an existing confirmed entry for the same athlete
// identity. It carries the existing first name for the user-facing message.
type DuplicateError struct {
	FirstName string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("athlete already registered (existing entry for %q)", e.FirstName)
}

// ChoiceQuotaError signals a selected option choice whose quantity cap is
// already reached.
type ChoiceQuotaError struct {
	ChoiceID catalog.ChoiceID
}

func (e *ChoiceQuotaError) Error() string {
	return fmt.Sprintf("option choice %q has no places left", e.ChoiceID)
}

// Store performs the atomic admission unit of work. Implementations MUST run
// the race lookup, capacity check, duplicate check, option choice quota
// check, price recomputation, and entry creation as one serializable unit;
// check-then-act across separate calls is not an acceptable approximation.
//
// Error contract: sentinel.ErrNotFound for a missing race,
// sentinel.ErrCapacityExhausted for a full race, *DuplicateError for an
// existing entry, *ChoiceQuotaError for a capped-out option choice.
type Store interface {
	Admit(ctx context.Context, params AdmitParams) (*AdmitResult, error)
	// ConfirmedCount reports the current confirmed entries for a race.
	ConfirmedCount(ctx context.Context, raceID catalog.RaceID) (int, error)
	// GetEntry loads an entry by ID.
	GetEntry(ctx context.Context, entryID string) (*Entry, error)
}
