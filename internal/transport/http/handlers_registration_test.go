package httptransport_test

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"startline/internal/admission"
	"startline/internal/catalog"
	"startline/internal/notification"
	"startline/internal/ratelimit"
	httptransport "startline/internal/transport/http"
	"startline/internal/verification"
	"startline/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	catalog *catalog.InMemoryStore
	entries *admission.InMemoryStore
	fedMock *verification.MockClient
	router  http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

const raceID = "race-10k"

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)

	s.catalog = catalog.NewInMemoryStore()
	s.entries = admission.NewInMemoryStore()
	s.fedMock = &verification.MockClient{}

	race := catalog.Race{
		ID:                raceID,
		EventID:           "event-1",
		Name:              "City 10K",
		Date:              time.Date(2026, time.June, 6, 9, 0, 0, 0, time.UTC),
		GenderRestriction: catalog.GenderAll,
		IsFederationRace:  true,
		FederationCode:    "ATH",
	}
	s.catalog.PutRace(race)
	s.entries.SeedRace(race)
	s.catalog.PutLicenseType(catalog.LicenseType{ID: "lt-hp", Code: catalog.LicenseCodeHealthPass, Name: "Health pass"})
	s.catalog.PutLicenseType(catalog.LicenseType{ID: "lt-fed", Code: catalog.LicenseCodeFederation, Name: "Federation license"})
	s.catalog.PutPricingPeriod(catalog.PricingPeriod{
		ID:        "period-std",
		RaceID:    raceID,
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(time.Hour),
		Active:    true,
	})
	s.catalog.PutPriceEntry(catalog.PriceEntry{
		RaceID: raceID, LicenseTypeID: "lt-hp", PeriodID: "period-std", PriceCents: 1500,
	})

	verifier, err := verification.NewService(s.fedMock, verification.NewInMemoryStore(), logger, nil)
	s.Require().NoError(err)
	limiter, err := ratelimit.NewService(ratelimit.NewInMemoryStore(), 5, 10*time.Minute)
	s.Require().NoError(err)
	admissions, err := admission.NewService(
		s.entries, s.catalog, verifier, limiter, nil,
		notification.NewLogSender(logger), nil, logger,
	)
	s.Require().NoError(err)

	s.router = httptransport.NewRouter(httptransport.RouterConfig{
		Handler: httptransport.New(admissions, verifier, s.catalog, logger),
		Logger:  logger,
	})
}

func (s *HandlerSuite) draft() httptransport.DraftDTO {
	return httptransport.DraftDTO{
		FirstName:     "Alex",
		LastName:      "Runner",
		Email:         "alex@example.com",
		Sex:           "M",
		BirthDate:     "1990-03-12",
		LicenseTypeID: "lt-hp",
		LicenseNumber: "P1000001",
		TermsAccepted: true,
	}
}

func (s *HandlerSuite) TestGetRace() {
	req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/races/"+raceID, nil)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[httptransport.RaceResponse](s.T(), rr)
	s.Equal(raceID, resp.ID)
	s.Equal("City 10K", resp.Name)
	s.True(resp.IsFederationRace)
}

func (s *HandlerSuite) TestGetRace_NotFound() {
	req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/races/race-unknown", nil)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	testutil.AssertErrorCode(s.T(), rr, "not_found")
}

func (s *HandlerSuite) TestQuote() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/quote", httptransport.QuoteRequest{
		RaceID: raceID,
		Draft:  s.draft(),
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[httptransport.QuoteResponse](s.T(), rr)
	s.True(resp.Eligible)
	s.Equal(int64(1500), resp.BaseCents)
	s.Equal(int64(99), resp.FeeCents)
	s.Equal(int64(1599), resp.TotalCents)
}

func (s *HandlerSuite) TestQuote_MalformedBody() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/quote", nil)
	req.Body = http.NoBody
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), rr, "bad_request")
}

func (s *HandlerSuite) TestQuote_BadBirthDate() {
	draft := s.draft()
	draft.BirthDate = "12/03/1990"
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/quote", httptransport.QuoteRequest{
		RaceID: raceID,
		Draft:  draft,
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), rr, "bad_request")
}

func (s *HandlerSuite) TestVerify() {
	draft := s.draft()
	draft.LicenseTypeID = "lt-fed"
	draft.LicenseNumber = "1234567"
	s.fedMock.Response = &verification.Response{
		Connected: true,
		Identity: &verification.ProviderIdentity{
			Surname:   draft.LastName,
			GivenName: draft.FirstName,
			Sex:       draft.Sex,
			BirthDate: "12/03/1990",
			Club:      "AC Test",
		},
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/verify", httptransport.VerifyRequest{
		RaceID: raceID,
		Draft:  draft,
	})
	rr := testutil.DoRequest(s.router, testutil.WithSession(req, "sess-1"))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[httptransport.VerifyResponse](s.T(), rr)
	s.Equal(string(verification.StateVerified), resp.State)
	s.Equal("AC Test", resp.Club)
}

func (s *HandlerSuite) TestVerify_MissingSession() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/verify", httptransport.VerifyRequest{
		RaceID: raceID,
		Draft:  s.draft(),
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), rr, "bad_request")
}

func (s *HandlerSuite) TestSubmit() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/submit", httptransport.SubmitRequest{
		RaceID: raceID,
		Draft:  s.draft(),
	})
	rr := testutil.DoRequest(s.router, testutil.WithSession(req, "sess-1"))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[httptransport.SubmitResponse](s.T(), rr)
	s.Equal(string(admission.OutcomeSuccess), resp.Outcome)
	s.NotEmpty(resp.EntryID)
	s.NotEmpty(resp.ManagementCode)
	s.Equal(int64(1599), resp.AmountCents)

	ctx := context.Background()
	count, err := s.entries.ConfirmedCount(ctx, raceID)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *HandlerSuite) TestSubmit_Duplicate() {
	body := httptransport.SubmitRequest{RaceID: raceID, Draft: s.draft()}

	first := testutil.DoRequest(s.router, testutil.WithSession(
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/submit", body), "sess-1"))
	testutil.AssertStatus(s.T(), first, http.StatusCreated)

	second := testutil.DoRequest(s.router, testutil.WithSession(
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/submit", body), "sess-2"))
	testutil.AssertStatus(s.T(), second, http.StatusOK)
	resp := testutil.UnmarshalResponse[httptransport.SubmitResponse](s.T(), second)
	s.Equal(string(admission.OutcomeAlreadyRegistered), resp.Outcome)
	s.Equal("Alex", resp.FirstName)
}

func (s *HandlerSuite) TestSubmit_RateLimited() {
	for i := 0; i < 5; i++ {
		draft := s.draft()
		draft.Email = string(rune('a'+i)) + "@example.com"
		draft.LastName = draft.LastName + string(rune('a'+i))
		draft.LicenseNumber = ""
		rr := testutil.DoRequest(s.router, testutil.WithSession(
			testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/submit",
				httptransport.SubmitRequest{RaceID: raceID, Draft: draft}), "sess-hot"))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	}

	rr := testutil.DoRequest(s.router, testutil.WithSession(
		testutil.NewJSONRequest(s.T(), http.MethodPost, "/registration/submit",
			httptransport.SubmitRequest{RaceID: raceID, Draft: s.draft()}), "sess-hot"))
	testutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)
	resp := testutil.UnmarshalResponse[httptransport.SubmitResponse](s.T(), rr)
	s.Equal(string(admission.OutcomeRateLimited), resp.Outcome)
	s.Positive(resp.RetryAfterSeconds)
}

func (s *HandlerSuite) TestMetricsEndpoint() {
	req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/metrics", nil)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *HandlerSuite) TestHealthz() {
	req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/healthz", nil)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}
