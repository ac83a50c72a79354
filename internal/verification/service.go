package verification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"startline/internal/catalog"
	"startline/internal/verification/metrics"
	dErrors "startline/pkg/domain-errors"
	"startline/pkg/platform/circuit"
	"startline/pkg/requestcontext"
)

// Service runs the verification state machine. One run per explicit user
// action; results are stored per session together with a fingerprint of the
// dependent identity fields so later edits invalidate them.
type Service struct {
	client  Client
	store   Store
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(client Client, store Store, logger *slog.Logger, m *metrics.Metrics) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("federation client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("verification store is required")
	}
	return &Service{
		client:  client,
		store:   store,
		breaker: circuit.New("federation"),
		metrics: m,
		logger:  logger,
	}, nil
}

// WithBreaker replaces the default federation circuit breaker, letting the
// caller tune thresholds and cooldown.
func (s *Service) WithBreaker(b *circuit.Breaker) *Service {
	s.breaker = b
	return s
}

// Verify runs one verification for the session's draft identity against the
// given race. It returns the terminal result; transient provider failures
// surface as StateServiceUnavailable, not as an error.
func (s *Service) Verify(ctx context.Context, sessionID string, identity Identity, race *catalog.Race) (Result, error) {
	if sessionID == "" {
		return Result{}, dErrors.New(dErrors.CodeBadRequest, "session id is required")
	}
	if !identity.Complete() {
		return Result{}, dErrors.New(dErrors.CodeBadRequest, "identity number, surname, given name and birthdate are required before verification")
	}
	if err := ValidateNumberFormat(identity.LicenseCode, identity.Number); err != nil {
		return Result{}, err
	}

	if s.breaker.IsOpen() {
		return s.finish(ctx, sessionID, identity, Result{
			State:   StateServiceUnavailable,
			Message: "verification service temporarily unavailable, retry later",
		})
	}

	// Mark the session mid-check so concurrent state reads see Verifying
	// instead of a stale terminal result for the same draft.
	if err := s.store.Save(ctx, Record{
		SessionID:   sessionID,
		Fingerprint: identity.Fingerprint(),
		Result:      Result{State: StateVerifying},
	}); err != nil {
		return Result{}, fmt.Errorf("save verification record: %w", err)
	}

	start := time.Now()
	resp, err := s.client.Check(ctx, Request{
		Number:         identity.Number,
		Surname:        identity.Surname,
		GivenName:      identity.GivenName,
		Sex:            identity.Sex,
		BirthYear:      identity.BirthDate.Year(),
		Consent:        true,
		FederationCode: race.FederationCode,
		EventDate:      race.Date.Format("02/01/2006"),
	})
	s.metrics.ObserveProviderLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "federation circuit opened", "error", err)
		}
		s.logger.WarnContext(ctx, "federation webservice call failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return s.finish(ctx, sessionID, identity, Result{
			State:   StateServiceUnavailable,
			Message: "could not reach the verification service",
		})
	}
	s.breaker.RecordSuccess()

	return s.finish(ctx, sessionID, identity, s.evaluate(resp, identity, race))
}

// Current returns the verification state the submitted draft is in right
// now. A fingerprint difference means a dependent field was edited after
// the last run, which resets the state to Idle.
func (s *Service) Current(ctx context.Context, sessionID string, identity Identity) (Result, error) {
	record, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("load verification record: %w", err)
	}
	if record == nil || record.Fingerprint != identity.Fingerprint() {
		return Result{State: StateIdle}, nil
	}
	return record.Result, nil
}

// evaluate applies the cross-check rules to a provider response.
func (s *Service) evaluate(resp *Response, identity Identity, race *catalog.Race) Result {
	if !resp.Connected {
		return Result{State: StateServiceUnavailable, Message: "verification service reported a connection failure"}
	}
	if resp.ErrorCode == "not_found" {
		return Result{State: StateNotFound, Message: "no license found for this number"}
	}
	if resp.ErrorCode != "" {
		return Result{State: StateServiceUnavailable, Message: "verification service error: " + resp.ErrorCode}
	}
	if !resp.HasIdentityFields() {
		return Result{
			State:   StateNotFound,
			Reasons: []MismatchReason{MismatchNoData},
			Message: "the verification service returned no identity data",
		}
	}

	provided := resp.Identity
	var reasons []MismatchReason
	if provided.Surname != "" && normalize(provided.Surname) != normalize(identity.Surname) {
		reasons = append(reasons, MismatchSurname)
	}
	if provided.GivenName != "" && normalize(provided.GivenName) != normalize(identity.GivenName) {
		reasons = append(reasons, MismatchGivenName)
	}
	if provided.Sex != "" && normalize(provided.Sex) != normalize(identity.Sex) {
		reasons = append(reasons, MismatchSex)
	}
	if provided.BirthDate != "" && provided.BirthDate != identity.BirthDate.Format("02/01/2006") {
		reasons = append(reasons, MismatchBirthDate)
	}
	if len(reasons) > 0 {
		return Result{
			State:   StateMismatch,
			Reasons: reasons,
			Message: "the license holder's details do not match the form",
		}
	}

	// Expiry doubles as license validity and health-pass freshness against
	// the race date.
	if !provided.ExpiresAt.IsZero() && provided.ExpiresAt.Before(race.Date) {
		return Result{
			State:   StateMismatch,
			Message: "the credential expires before the race date",
		}
	}

	return Result{
		State:     StateVerified,
		Club:      provided.Club,
		ExpiresAt: provided.ExpiresAt,
	}
}

func (s *Service) finish(ctx context.Context, sessionID string, identity Identity, result Result) (Result, error) {
	result.CheckedAt = requestcontext.Now(ctx)
	s.metrics.RecordCheck(string(result.State))
	record := Record{
		SessionID:   sessionID,
		Fingerprint: identity.Fingerprint(),
		Result:      result,
	}
	if err := s.store.Save(ctx, record); err != nil {
		return Result{}, fmt.Errorf("save verification record: %w", err)
	}
	return result, nil
}
