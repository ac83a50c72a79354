// Package admission is the authoritative commit path for registrations. It
// is the only component whose decision is final: capacity, duplicates, and
// the amount due are all re-checked here against the system of record,
// inside one atomic unit of work.
package admission

import (
	"strings"
	"time"

	"startline/internal/catalog"
	"startline/internal/pricing"
)

// Draft is the athlete's submission. It is client-held until this point and
// discarded after; the server recomputes everything it contains a price or
// eligibility claim about.
type Draft struct {
	FirstName     string
	LastName      string
	Email         string
	Sex           catalog.Gender
	BirthDate     time.Time
	LicenseTypeID catalog.LicenseTypeID
	LicenseNumber string
	Club          string
	Options       []pricing.SelectedOption
	TermsAccepted bool
}

// Athlete is the persisted identity created on admission.
type Athlete struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	Sex           catalog.Gender
	BirthDate     time.Time
	Club          string
	LicenseNumber string
}

// IdentityKey derives the duplicate-detection key: normalized name plus
// birthdate plus email. The license number is matched separately.
func (a Athlete) IdentityKey() string {
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(a.LastName)),
		strings.ToLower(strings.TrimSpace(a.FirstName)),
		a.BirthDate.UTC().Format("2006-01-02"),
		strings.ToLower(strings.TrimSpace(a.Email)),
	}, "|")
}

// EntryStatus tracks an entry's lifecycle. Only confirmed entries count
// against capacity; later transitions belong to back-office tooling.
type EntryStatus string

const (
	EntryStatusConfirmed EntryStatus = "confirmed"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// Entry is one confirmed registration.
type Entry struct {
	ID          string
	AthleteID   string
	RaceID      catalog.RaceID
	AmountCents int64
	Status      EntryStatus
	// SessionToken ties the entry to the browsing session that created it.
	SessionToken string
	// ManagementCode is the opaque token the athlete uses for later
	// self-service changes. Unique per entry.
	ManagementCode string
	BibNumber      string
	CreatedAt      time.Time
}

// Outcome tags the admission result.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeAlreadyRegistered Outcome = "already_registered"
	OutcomeRaceFull          Outcome = "race_full"
	OutcomeRaceNotFound      Outcome = "race_not_found"
	OutcomeRateLimited       Outcome = "rate_limited"
	OutcomeUnknownError      Outcome = "unknown_error"
)

// Result is the tagged admission outcome. Exactly the fields relevant to
// the outcome are set.
type Result struct {
	Outcome Outcome

	// Success
	EntryID        string
	ManagementCode string
	AmountCents    int64
	// PlacesRemaining is nil for unlimited races.
	PlacesRemaining *int

	// AlreadyRegistered: first name on the existing entry, for a friendly
	// message.
	FirstName string

	// RateLimited
	RetryAfterSeconds int

	// UnknownError
	ErrorCode string
	Message   string
}
