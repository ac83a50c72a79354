// Package verification validates an athlete's license or health-pass
// identity against the federation webservice and tracks the verification
// state a draft is currently in. Admission depends on "is currently
// verified", never on "was once verified": any edit to a dependent field
// invalidates the stored result back to Idle.
package verification

import (
	"strings"
	"time"
)

// State is the verification state machine position.
type State string

const (
	StateIdle               State = "idle"
	StateVerifying          State = "verifying"
	StateVerified           State = "verified"
	StateMismatch           State = "mismatch"
	StateNotFound           State = "not_found"
	StateServiceUnavailable State = "service_unavailable"
)

// MismatchReason is one discrete cross-check failure.
type MismatchReason string

const (
	MismatchSurname   MismatchReason = "surname_mismatch"
	MismatchGivenName MismatchReason = "given_name_mismatch"
	MismatchSex       MismatchReason = "sex_mismatch"
	MismatchBirthDate MismatchReason = "birth_date_mismatch"
	// MismatchNoData is reported when the provider returned no usable
	// identity fields at all; it is distinct from a field mismatch.
	MismatchNoData MismatchReason = "no_data_returned"
)

// Identity is the subset of the draft the verifier depends on. Editing any
// of these fields after a result invalidates that result.
type Identity struct {
	Number      string
	Surname     string
	GivenName   string
	Sex         string
	BirthDate   time.Time
	LicenseCode string
}

// Fingerprint returns a normalized equality key over the dependent fields.
// Invalidation is a fingerprint comparison, not an imperative reset.
func (i Identity) Fingerprint() string {
	return strings.Join([]string{
		normalize(i.Number),
		normalize(i.Surname),
		normalize(i.GivenName),
		normalize(i.Sex),
		i.BirthDate.UTC().Format("2006-01-02"),
		normalize(i.LicenseCode),
	}, "|")
}

// Complete reports whether the trigger preconditions hold: identity number,
// surname, given name, and birthdate all present.
func (i Identity) Complete() bool {
	return i.Number != "" && i.Surname != "" && i.GivenName != "" && !i.BirthDate.IsZero()
}

// Result is the outcome of one verification run.
type Result struct {
	State     State
	Reasons   []MismatchReason
	Message   string
	Club      string
	ExpiresAt time.Time
	CheckedAt time.Time
}

// Record is the stored verification state for one session's draft.
type Record struct {
	SessionID   string
	Fingerprint string
	Result      Result
}

// normalize collapses case and whitespace so provider formatting quirks do
// not produce false mismatches.
func normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
