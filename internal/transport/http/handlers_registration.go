package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"startline/internal/admission"
	"startline/internal/catalog"
	"startline/internal/eligibility"
	"startline/internal/pricing"
	"startline/internal/verification"
	dErrors "startline/pkg/domain-errors"
	"startline/pkg/platform/httputil"
	"startline/pkg/platform/sentinel"
	"startline/pkg/requestcontext"
)

// AdmissionService defines the registration operations the handler needs.
type AdmissionService interface {
	Admit(ctx context.Context, req admission.Request) (admission.Result, error)
	Quote(ctx context.Context, req admission.Request) (eligibility.Result, pricing.Quote, error)
}

// Verifier runs federation license checks for a session.
type Verifier interface {
	Verify(ctx context.Context, sessionID string, identity verification.Identity, race *catalog.Race) (verification.Result, error)
}

// Handler wires registration endpoints to the domain services.
type Handler struct {
	admissions AdmissionService
	verifier   Verifier
	catalog    catalog.Store
	logger     *slog.Logger
}

// New constructs a registration handler with its dependencies.
func New(admissions AdmissionService, verifier Verifier, cat catalog.Store, logger *slog.Logger) *Handler {
	return &Handler{
		admissions: admissions,
		verifier:   verifier,
		catalog:    cat,
		logger:     logger,
	}
}

// Register mounts registration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/races/{raceID}", h.HandleGetRace)
	r.Post("/registration/quote", h.HandleQuote)
	r.Post("/registration/verify", h.HandleVerify)
	r.Post("/registration/submit", h.HandleSubmit)
}

// HandleGetRace handles GET /races/{raceID} requests.
func (h *Handler) HandleGetRace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raceID := catalog.RaceID(chi.URLParam(r, "raceID"))

	race, err := h.catalog.GetRace(ctx, raceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "race not found"))
			return
		}
		h.logger.ErrorContext(ctx, "race lookup failed", "race_id", raceID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newRaceResponse(race))
}

// HandleQuote handles POST /registration/quote requests. The response is a
// preview only; nothing is reserved.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[QuoteRequest](w, r)
	if !ok {
		return
	}
	draft, err := req.Draft.ToDraft()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	eligible, quote, err := h.admissions.Quote(ctx, admission.Request{
		SessionID: requestcontext.SessionID(ctx),
		RaceID:    catalog.RaceID(req.RaceID),
		Draft:     draft,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newQuoteResponse(eligible, quote))
}

// HandleVerify handles POST /registration/verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID := requestcontext.SessionID(ctx)
	if sessionID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "session header is required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r)
	if !ok {
		return
	}
	draft, err := req.Draft.ToDraft()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	race, err := h.catalog.GetRace(ctx, catalog.RaceID(req.RaceID))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "race not found"))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	licenseType, err := h.catalog.GetLicenseType(ctx, draft.LicenseTypeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown license type"))
			return
		}
		httputil.WriteError(w, err)
		return
	}

	result, err := h.verifier.Verify(ctx, sessionID, verification.Identity{
		Number:      draft.LicenseNumber,
		Surname:     draft.LastName,
		GivenName:   draft.FirstName,
		Sex:         string(draft.Sex),
		BirthDate:   draft.BirthDate,
		LicenseCode: licenseType.Code,
	}, race)
	if err != nil {
		h.logger.ErrorContext(ctx, "license verification failed",
			"request_id", requestID,
			"race_id", req.RaceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newVerifyResponse(result))
}

// HandleSubmit handles POST /registration/submit requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r)
	if !ok {
		return
	}
	draft, err := req.Draft.ToDraft()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.admissions.Admit(ctx, admission.Request{
		SessionID: requestcontext.SessionID(ctx),
		RaceID:    catalog.RaceID(req.RaceID),
		Draft:     draft,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "registration rejected",
			"request_id", requestID,
			"race_id", req.RaceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration processed",
		"request_id", requestID,
		"race_id", req.RaceID,
		"outcome", result.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, statusForOutcome(result.Outcome), newSubmitResponse(result))
}

func statusForOutcome(outcome admission.Outcome) int {
	switch outcome {
	case admission.OutcomeSuccess:
		return http.StatusCreated
	case admission.OutcomeAlreadyRegistered:
		return http.StatusOK
	case admission.OutcomeRaceFull:
		return http.StatusConflict
	case admission.OutcomeRaceNotFound:
		return http.StatusNotFound
	case admission.OutcomeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
