package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"startline/internal/admission/metrics"
	"startline/internal/attemptlog"
	"startline/internal/catalog"
	"startline/internal/eligibility"
	"startline/internal/notification"
	"startline/internal/pricing"
	"startline/internal/ratelimit"
	"startline/internal/verification"
	dErrors "startline/pkg/domain-errors"
	"startline/pkg/platform/sentinel"
	"startline/pkg/requestcontext"
)

// Request is one admission call.
type Request struct {
	SessionID string
	RaceID    catalog.RaceID
	Draft     Draft
}

// Service orchestrates the commit path: rate limit, server-side re-checks,
// the atomic store admission, attempt logging, and the post-commit
// notification handoff.
type Service struct {
	store    Store
	catalog  catalog.Store
	verifier *verification.Service
	limiter  *ratelimit.Service
	attempts *attemptlog.Publisher
	notifier notification.Sender
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(
	store Store,
	cat catalog.Store,
	verifier *verification.Service,
	limiter *ratelimit.Service,
	attempts *attemptlog.Publisher,
	notifier notification.Sender,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("admission store is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog store is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	return &Service{
		store:    store,
		catalog:  cat,
		verifier: verifier,
		limiter:  limiter,
		attempts: attempts,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}, nil
}

// Admit runs one admission to a terminal outcome. There is no cancellation
// once submitted: the caller may retry only after receiving a terminal
// response. Errors are returned only for malformed input or infrastructure
// failures the tagged result cannot express.
func (s *Service) Admit(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	if err := validateDraft(req); err != nil {
		return Result{}, err
	}

	limit, err := s.limiter.CheckSession(ctx, req.SessionID)
	if err != nil {
		// A broken limiter must not take registrations down with it: the
		// limiter is a best-effort abuse deterrent, not a gatekeeper.
		s.logger.WarnContext(ctx, "rate limiter unavailable, admitting without it", "error", err)
	} else if !limit.Allowed {
		result := Result{
			Outcome:           OutcomeRateLimited,
			RetryAfterSeconds: limit.RetryAfterSeconds(),
		}
		s.record(ctx, req, attemptlog.StatusRateLimited, "", start)
		s.metrics.RecordOutcome(string(OutcomeRateLimited))
		return result, nil
	}

	race, err := s.catalog.GetRace(ctx, req.RaceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.record(ctx, req, attemptlog.StatusFailed, "race_not_found", start)
			return Result{Outcome: OutcomeRaceNotFound}, nil
		}
		return Result{}, fmt.Errorf("load race: %w", err)
	}

	if err := s.checkEligibility(ctx, race, req.Draft); err != nil {
		s.record(ctx, req, attemptlog.StatusFailed, "ineligible", start)
		return Result{}, err
	}

	licenseType, err := s.catalog.GetLicenseType(ctx, req.Draft.LicenseTypeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Result{}, dErrors.New(dErrors.CodeBadRequest, "unknown license type")
		}
		return Result{}, fmt.Errorf("load license type: %w", err)
	}

	if err := s.checkVerification(ctx, req, race, licenseType); err != nil {
		s.record(ctx, req, attemptlog.StatusFailed, "verification_required", start)
		return Result{}, err
	}

	// Fail fast when no pricing period is open; the price func re-checks
	// inside the transaction.
	periods, err := s.catalog.ListPricingPeriods(ctx, req.RaceID)
	if err != nil {
		return Result{}, fmt.Errorf("load pricing periods: %w", err)
	}
	if _, open := pricing.CurrentPeriod(periods, requestcontext.Now(ctx)); !open {
		return Result{}, dErrors.New(dErrors.CodeBadRequest, "registrations are closed for this race")
	}

	params := AdmitParams{
		RaceID: req.RaceID,
		Athlete: Athlete{
			FirstName:     req.Draft.FirstName,
			LastName:      req.Draft.LastName,
			Email:         req.Draft.Email,
			Sex:           req.Draft.Sex,
			BirthDate:     req.Draft.BirthDate,
			Club:          req.Draft.Club,
			LicenseNumber: req.Draft.LicenseNumber,
		},
		Options:        req.Draft.Options,
		SessionToken:   req.SessionID,
		ManagementCode: uuid.NewString(),
		Price:          s.priceFunc(req),
	}

	admitted, err := s.store.Admit(ctx, params)
	if err != nil {
		var quotaErr *ChoiceQuotaError
		if errors.As(err, &quotaErr) {
			s.record(ctx, req, attemptlog.StatusFailed, "option_quota_exhausted", start)
			return Result{}, dErrors.New(dErrors.CodeConflict, "a selected option has no places left")
		}
		return s.failure(ctx, req, err, start), nil
	}

	s.record(ctx, req, attemptlog.StatusSuccess, "", start)
	s.metrics.RecordOutcome(string(OutcomeSuccess))
	s.metrics.ObserveLatency(float64(time.Since(start).Milliseconds()))
	s.notify(ctx, race, req.Draft, params.ManagementCode, admitted.AmountCents)

	return Result{
		Outcome:         OutcomeSuccess,
		EntryID:         admitted.EntryID,
		ManagementCode:  params.ManagementCode,
		AmountCents:     admitted.AmountCents,
		PlacesRemaining: admitted.PlacesRemaining,
	}, nil
}

// Quote previews eligibility and price for a draft without committing
// anything. It runs the same pure evaluators the admission path re-runs.
func (s *Service) Quote(ctx context.Context, req Request) (eligibility.Result, pricing.Quote, error) {
	race, err := s.catalog.GetRace(ctx, req.RaceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return eligibility.Result{}, pricing.Quote{}, dErrors.New(dErrors.CodeNotFound, "race not found")
		}
		return eligibility.Result{}, pricing.Quote{}, fmt.Errorf("load race: %w", err)
	}

	categories, err := s.catalog.ListCategories(ctx, race.CategoryRestriction)
	if err != nil {
		return eligibility.Result{}, pricing.Quote{}, fmt.Errorf("load categories: %w", err)
	}
	eligible := eligibility.Evaluate(eligibility.Input{
		BirthDate:         req.Draft.BirthDate,
		Gender:            req.Draft.Sex,
		EventDate:         race.Date,
		GenderRestriction: race.GenderRestriction,
		Categories:        categories,
		FederationRace:    race.IsFederationRace,
	})

	quote, err := s.resolvePrice(ctx, req)
	if err != nil {
		return eligibility.Result{}, pricing.Quote{}, err
	}
	return eligible, quote, nil
}

func (s *Service) priceFunc(req Request) PriceFunc {
	return func(ctx context.Context) (int64, error) {
		quote, err := s.resolvePrice(ctx, req)
		if err != nil {
			return 0, err
		}
		if quote.MissingPriceEntry {
			// Known data gap: a missing pricing row silently prices the
			// registration at zero. Preserved behavior, flagged for ops.
			s.logger.WarnContext(ctx, "no price entry for license type and period, pricing at zero",
				"race_id", req.RaceID,
				"license_type_id", req.Draft.LicenseTypeID,
			)
		}
		return quote.TotalCents, nil
	}
}

func (s *Service) resolvePrice(ctx context.Context, req Request) (pricing.Quote, error) {
	periods, err := s.catalog.ListPricingPeriods(ctx, req.RaceID)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("load pricing periods: %w", err)
	}
	period, ok := pricing.CurrentPeriod(periods, requestcontext.Now(ctx))
	if !ok {
		return pricing.Quote{}, dErrors.New(dErrors.CodeBadRequest, "no active pricing period")
	}

	entry, err := s.catalog.GetPriceEntry(ctx, req.RaceID, req.Draft.LicenseTypeID, period.ID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return pricing.Quote{}, fmt.Errorf("load price entry: %w", err)
	}

	options, err := s.catalog.ListOptions(ctx, req.RaceID)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("load options: %w", err)
	}
	return pricing.Resolve(period, entry, options, req.Draft.Options), nil
}

func (s *Service) checkEligibility(ctx context.Context, race *catalog.Race, draft Draft) error {
	categories, err := s.catalog.ListCategories(ctx, race.CategoryRestriction)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	result := eligibility.Evaluate(eligibility.Input{
		BirthDate:         draft.BirthDate,
		Gender:            draft.Sex,
		EventDate:         race.Date,
		GenderRestriction: race.GenderRestriction,
		Categories:        categories,
		FederationRace:    race.IsFederationRace,
	})
	if !result.Eligible {
		return dErrors.New(dErrors.CodeBadRequest, result.Reason)
	}
	return nil
}

// checkVerification blocks submission when the selected license type
// mandates a currently-valid verification. Health-pass entries degrade to a
// manual document follow-up instead of blocking.
func (s *Service) checkVerification(ctx context.Context, req Request, race *catalog.Race, licenseType *catalog.LicenseType) error {
	if s.verifier == nil || !race.IsFederationRace || licenseType.Code != catalog.LicenseCodeFederation {
		return nil
	}
	current, err := s.verifier.Current(ctx, req.SessionID, verification.Identity{
		Number:      req.Draft.LicenseNumber,
		Surname:     req.Draft.LastName,
		GivenName:   req.Draft.FirstName,
		Sex:         string(req.Draft.Sex),
		BirthDate:   req.Draft.BirthDate,
		LicenseCode: licenseType.Code,
	})
	if err != nil {
		return fmt.Errorf("load verification state: %w", err)
	}
	if current.State != verification.StateVerified {
		return dErrors.New(dErrors.CodeBadRequest, "a verified federation license is required for this race")
	}
	return nil
}

// failure maps store errors to the tagged outcomes the contract promises.
func (s *Service) failure(ctx context.Context, req Request, err error, start time.Time) Result {
	var dup *DuplicateError
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		s.record(ctx, req, attemptlog.StatusFailed, "race_not_found", start)
		s.metrics.RecordOutcome(string(OutcomeRaceNotFound))
		return Result{Outcome: OutcomeRaceNotFound}
	case errors.Is(err, sentinel.ErrCapacityExhausted):
		s.record(ctx, req, attemptlog.StatusQuotaExceeded, "race_full", start)
		s.metrics.RecordOutcome(string(OutcomeRaceFull))
		return Result{Outcome: OutcomeRaceFull}
	case errors.As(err, &dup):
		s.record(ctx, req, attemptlog.StatusAlreadyRegistered, "already_registered", start)
		s.metrics.RecordOutcome(string(OutcomeAlreadyRegistered))
		return Result{Outcome: OutcomeAlreadyRegistered, FirstName: dup.FirstName}
	default:
		s.logger.ErrorContext(ctx, "admission failed",
			"race_id", req.RaceID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		s.record(ctx, req, attemptlog.StatusFailed, "internal", start)
		s.metrics.RecordOutcome(string(OutcomeUnknownError))
		return Result{
			Outcome:   OutcomeUnknownError,
			ErrorCode: "internal",
			Message:   "the registration could not be processed, please retry",
		}
	}
}

// record logs the attempt out-of-band. Best-effort by contract.
func (s *Service) record(ctx context.Context, req Request, status attemptlog.Status, errorCode string, start time.Time) {
	if s.attempts == nil {
		return
	}
	s.attempts.Emit(ctx, attemptlog.Attempt{
		SessionID: req.SessionID,
		RaceID:    string(req.RaceID),
		Status:    status,
		ErrorCode: errorCode,
		LatencyMs: time.Since(start).Milliseconds(),
	})
}

// notify hands the confirmation to the external collaborator. Failure never
// rolls back the registration.
func (s *Service) notify(ctx context.Context, race *catalog.Race, draft Draft, managementCode string, amount int64) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.SendConfirmation(ctx, notification.Confirmation{
		AthleteFirstName: draft.FirstName,
		AthleteLastName:  draft.LastName,
		AthleteEmail:     draft.Email,
		RaceName:         race.Name,
		EventName:        race.EventID,
		ManagementCode:   managementCode,
		AmountCents:      amount,
		OrganizerName:    race.OrganizerName,
		OrganizerEmail:   race.OrganizerEmail,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "confirmation notification failed", "error", err)
	}
}

func validateDraft(req Request) error {
	if req.SessionID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "session id is required")
	}
	draft := req.Draft
	switch {
	case draft.FirstName == "" || draft.LastName == "":
		return dErrors.New(dErrors.CodeBadRequest, "first and last name are required")
	case draft.Email == "":
		return dErrors.New(dErrors.CodeBadRequest, "email is required")
	case draft.BirthDate.IsZero():
		return dErrors.New(dErrors.CodeBadRequest, "birthdate is required")
	case !draft.TermsAccepted:
		return dErrors.New(dErrors.CodeBadRequest, "terms must be accepted")
	}
	return nil
}
