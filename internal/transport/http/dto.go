package httptransport

import (
	"time"

	"startline/internal/admission"
	"startline/internal/catalog"
	"startline/internal/eligibility"
	"startline/internal/pricing"
	"startline/internal/verification"
	dErrors "startline/pkg/domain-errors"
)

const birthDateLayout = "2006-01-02"

// SelectedOptionDTO mirrors pricing.SelectedOption on the wire.
type SelectedOptionDTO struct {
	OptionID string `json:"option_id"`
	ChoiceID string `json:"choice_id,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
}

// DraftDTO is the registration form as submitted by the client. Any price
// or eligibility claim it carries is recomputed server-side.
type DraftDTO struct {
	FirstName     string              `json:"first_name"`
	LastName      string              `json:"last_name"`
	Email         string              `json:"email"`
	Sex           string              `json:"sex"`
	BirthDate     string              `json:"birth_date"` // YYYY-MM-DD
	LicenseTypeID string              `json:"license_type_id"`
	LicenseNumber string              `json:"license_number"`
	Club          string              `json:"club,omitempty"`
	Options       []SelectedOptionDTO `json:"options,omitempty"`
	TermsAccepted bool                `json:"terms_accepted"`
}

// ToDraft converts the wire form into the domain draft.
func (d DraftDTO) ToDraft() (admission.Draft, error) {
	birthDate, err := time.Parse(birthDateLayout, d.BirthDate)
	if err != nil {
		return admission.Draft{}, dErrors.New(dErrors.CodeBadRequest, "birth_date must be YYYY-MM-DD")
	}
	options := make([]pricing.SelectedOption, 0, len(d.Options))
	for _, opt := range d.Options {
		options = append(options, pricing.SelectedOption{
			OptionID: catalog.OptionID(opt.OptionID),
			ChoiceID: catalog.ChoiceID(opt.ChoiceID),
			Quantity: opt.Quantity,
		})
	}
	return admission.Draft{
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		Sex:           catalog.Gender(d.Sex),
		BirthDate:     birthDate,
		LicenseTypeID: catalog.LicenseTypeID(d.LicenseTypeID),
		LicenseNumber: d.LicenseNumber,
		Club:          d.Club,
		Options:       options,
		TermsAccepted: d.TermsAccepted,
	}, nil
}

// QuoteRequest asks for a non-binding eligibility and price preview.
type QuoteRequest struct {
	RaceID string   `json:"race_id"`
	Draft  DraftDTO `json:"draft"`
}

type QuoteResponse struct {
	Eligible          bool   `json:"eligible"`
	Reason            string `json:"reason,omitempty"`
	Age               int    `json:"age"`
	PeriodID          string `json:"period_id"`
	BaseCents         int64  `json:"base_cents"`
	OptionsCents      int64  `json:"options_cents"`
	SubtotalCents     int64  `json:"subtotal_cents"`
	FeeCents          int64  `json:"fee_cents"`
	TotalCents        int64  `json:"total_cents"`
	MissingPriceEntry bool   `json:"missing_price_entry,omitempty"`
}

func newQuoteResponse(eligible eligibility.Result, quote pricing.Quote) QuoteResponse {
	return QuoteResponse{
		Eligible:          eligible.Eligible,
		Reason:            eligible.Reason,
		Age:               eligible.Age,
		PeriodID:          string(quote.PeriodID),
		BaseCents:         quote.BaseCents,
		OptionsCents:      quote.OptionsCents,
		SubtotalCents:     quote.SubtotalCents,
		FeeCents:          quote.FeeCents,
		TotalCents:        quote.TotalCents,
		MissingPriceEntry: quote.MissingPriceEntry,
	}
}

// VerifyRequest runs a license check for the current session.
type VerifyRequest struct {
	RaceID string   `json:"race_id"`
	Draft  DraftDTO `json:"draft"`
}

type VerifyResponse struct {
	State     string   `json:"state"`
	Reasons   []string `json:"reasons,omitempty"`
	Message   string   `json:"message,omitempty"`
	Club      string   `json:"club,omitempty"`
	CheckedAt string   `json:"checked_at,omitempty"`
}

func newVerifyResponse(result verification.Result) VerifyResponse {
	resp := VerifyResponse{
		State:   string(result.State),
		Message: result.Message,
		Club:    result.Club,
	}
	for _, reason := range result.Reasons {
		resp.Reasons = append(resp.Reasons, string(reason))
	}
	if !result.CheckedAt.IsZero() {
		resp.CheckedAt = result.CheckedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// SubmitRequest commits a registration.
type SubmitRequest struct {
	RaceID string   `json:"race_id"`
	Draft  DraftDTO `json:"draft"`
}

type SubmitResponse struct {
	Outcome string `json:"outcome"`

	EntryID         string `json:"entry_id,omitempty"`
	ManagementCode  string `json:"management_code,omitempty"`
	AmountCents     int64  `json:"amount_cents,omitempty"`
	PlacesRemaining *int   `json:"places_remaining,omitempty"`

	FirstName string `json:"first_name,omitempty"`

	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`

	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

func newSubmitResponse(result admission.Result) SubmitResponse {
	return SubmitResponse{
		Outcome:           string(result.Outcome),
		EntryID:           result.EntryID,
		ManagementCode:    result.ManagementCode,
		AmountCents:       result.AmountCents,
		PlacesRemaining:   result.PlacesRemaining,
		FirstName:         result.FirstName,
		RetryAfterSeconds: result.RetryAfterSeconds,
		ErrorCode:         result.ErrorCode,
		Message:           result.Message,
	}
}

// RaceResponse is the public race detail used by the registration form.
type RaceResponse struct {
	ID                  string   `json:"id"`
	EventID             string   `json:"event_id"`
	Name                string   `json:"name"`
	Date                string   `json:"date"`
	Capacity            *int     `json:"capacity,omitempty"`
	PlacesRemaining     *int     `json:"places_remaining,omitempty"`
	GenderRestriction   string   `json:"gender_restriction"`
	CategoryRestriction []string `json:"category_restriction,omitempty"`
	IsFederationRace    bool     `json:"is_federation_race"`
}

func newRaceResponse(race *catalog.Race) RaceResponse {
	resp := RaceResponse{
		ID:                  string(race.ID),
		EventID:             race.EventID,
		Name:                race.Name,
		Date:                race.Date.UTC().Format(birthDateLayout),
		Capacity:            race.Capacity,
		GenderRestriction:   string(race.GenderRestriction),
		CategoryRestriction: race.CategoryRestriction,
		IsFederationRace:    race.IsFederationRace,
	}
	if race.Capacity != nil {
		remaining := *race.Capacity - race.ConfirmedCount
		if remaining < 0 {
			remaining = 0
		}
		resp.PlacesRemaining = &remaining
	}
	return resp
}
