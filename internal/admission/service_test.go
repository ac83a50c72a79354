package admission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"startline/internal/attemptlog"
	"startline/internal/catalog"
	"startline/internal/notification"
	"startline/internal/pricing"
	"startline/internal/ratelimit"
	"startline/internal/verification"
	dErrors "startline/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	catalog  *catalog.InMemoryStore
	store    *InMemoryStore
	attempts *attemptlog.InMemoryStore
	verifier *verification.Service
	fedMock  *verification.MockClient
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

const testRaceID = catalog.RaceID("race-10k")

func (s *ServiceSuite) SetupTest() {
	s.catalog = catalog.NewInMemoryStore()
	s.store = NewInMemoryStore()
	s.attempts = attemptlog.NewInMemoryStore()
	logger := slog.New(slog.DiscardHandler)

	s.fedMock = &verification.MockClient{}
	var err error
	s.verifier, err = verification.NewService(s.fedMock, verification.NewInMemoryStore(), logger, nil)
	s.Require().NoError(err)

	limiter, err := ratelimit.NewService(ratelimit.NewInMemoryStore(), 5, 10*time.Minute)
	s.Require().NoError(err)

	publisher := attemptlog.NewPublisher(64)
	worker := attemptlog.NewWorker(s.attempts, publisher.Inbox(), logger)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = worker.Run(ctx) }()
	s.T().Cleanup(cancel)

	s.service, err = NewService(
		s.store, s.catalog, s.verifier, limiter, publisher,
		notification.NewLogSender(logger), nil, logger,
	)
	s.Require().NoError(err)

	s.seedRace(nil)
}

// seedRace (re-)seeds the test race with the given capacity.
func (s *ServiceSuite) seedRace(capacity *int) {
	race := catalog.Race{
		ID:                testRaceID,
		EventID:           "event-1",
		Name:              "City 10K",
		Date:              time.Date(2026, time.June, 6, 9, 0, 0, 0, time.UTC),
		Capacity:          capacity,
		GenderRestriction: catalog.GenderAll,
		FederationCode:    "ATH",
	}
	s.catalog.PutRace(race)
	s.store.SeedRace(race)

	s.catalog.PutLicenseType(catalog.LicenseType{ID: "lt-fed", Code: catalog.LicenseCodeFederation, Name: "Federation license"})
	s.catalog.PutLicenseType(catalog.LicenseType{ID: "lt-hp", Code: catalog.LicenseCodeHealthPass, Name: "Health pass"})
	s.catalog.PutPricingPeriod(catalog.PricingPeriod{
		ID:        "period-std",
		RaceID:    testRaceID,
		StartDate: time.Now().Add(-24 * time.Hour),
		EndDate:   time.Now().Add(24 * time.Hour),
		Active:    true,
	})
	s.catalog.PutPriceEntry(catalog.PriceEntry{
		RaceID:        testRaceID,
		LicenseTypeID: "lt-hp",
		PeriodID:      "period-std",
		PriceCents:    1000,
	})
	s.catalog.PutPriceEntry(catalog.PriceEntry{
		RaceID:        testRaceID,
		LicenseTypeID: "lt-fed",
		PeriodID:      "period-std",
		PriceCents:    800,
	})
}

func (s *ServiceSuite) draft(n int) Draft {
	return Draft{
		FirstName:     fmt.Sprintf("Alex%d", n),
		LastName:      fmt.Sprintf("Runner%d", n),
		Email:         fmt.Sprintf("alex%d@example.com", n),
		Sex:           catalog.GenderMale,
		BirthDate:     time.Date(1990, time.March, 12, 0, 0, 0, 0, time.UTC),
		LicenseTypeID: "lt-hp",
		LicenseNumber: fmt.Sprintf("P10000%02d", n),
		TermsAccepted: true,
	}
}

func (s *ServiceSuite) TestAdmit_Success() {
	ctx := context.Background()
	result, err := s.service.Admit(ctx, Request{SessionID: "sess-1", RaceID: testRaceID, Draft: s.draft(1)})
	s.Require().NoError(err)

	s.Equal(OutcomeSuccess, result.Outcome)
	s.NotEmpty(result.EntryID)
	s.NotEmpty(result.ManagementCode)
	s.Nil(result.PlacesRemaining) // unlimited race

	// Amount is recomputed server-side: 1000 base + 99 flat fee.
	s.Equal(int64(1099), result.AmountCents)

	entry, err := s.store.GetEntry(ctx, result.EntryID)
	s.Require().NoError(err)
	s.Equal(EntryStatusConfirmed, entry.Status)
	s.Equal(int64(1099), entry.AmountCents)
}

func (s *ServiceSuite) TestAdmit_DuplicateSameAthlete() {
	ctx := context.Background()
	draft := s.draft(1)

	first, err := s.service.Admit(ctx, Request{SessionID: "sess-1", RaceID: testRaceID, Draft: draft})
	s.Require().NoError(err)
	s.Require().Equal(OutcomeSuccess, first.Outcome)

	second, err := s.service.Admit(ctx, Request{SessionID: "sess-2", RaceID: testRaceID, Draft: draft})
	s.Require().NoError(err)
	s.Equal(OutcomeAlreadyRegistered, second.Outcome)
	s.Equal("Alex1", second.FirstName)

	count, err := s.store.ConfirmedCount(ctx, testRaceID)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ServiceSuite) TestAdmit_DuplicateByLicenseNumber() {
	ctx := context.Background()
	draft := s.draft(1)
	_, err := s.service.Admit(ctx, Request{SessionID: "sess-1", RaceID: testRaceID, Draft: draft})
	s.Require().NoError(err)

	// Different name and email, same license number.
	other := s.draft(2)
	other.LicenseNumber = draft.LicenseNumber
	result, err := s.service.Admit(ctx, Request{SessionID: "sess-2", RaceID: testRaceID, Draft: other})
	s.Require().NoError(err)
	s.Equal(OutcomeAlreadyRegistered, result.Outcome)
}

func (s *ServiceSuite) TestAdmit_CapacityUnderConcurrency() {
	ctx := context.Background()
	one := 1
	s.seedRace(&one)

	const attempts = 8
	results := make([]Result, attempts)
	var group errgroup.Group
	var start sync.WaitGroup
	start.Add(1)

	for i := 0; i < attempts; i++ {
		group.Go(func() error {
			start.Wait()
			result, err := s.service.Admit(ctx, Request{
				SessionID: fmt.Sprintf("sess-%d", i),
				RaceID:    testRaceID,
				Draft:     s.draft(i),
			})
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	start.Done()
	s.Require().NoError(group.Wait())

	var successes, full int
	for _, result := range results {
		switch result.Outcome {
		case OutcomeSuccess:
			successes++
			s.Require().NotNil(result.PlacesRemaining)
			s.Equal(0, *result.PlacesRemaining)
		case OutcomeRaceFull:
			full++
		default:
			s.Failf("unexpected outcome", "got %s", result.Outcome)
		}
	}
	s.Equal(1, successes)
	s.Equal(attempts-1, full)

	count, err := s.store.ConfirmedCount(ctx, testRaceID)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ServiceSuite) TestAdmit_RateLimited() {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.service.Admit(ctx, Request{SessionID: "sess-hot", RaceID: testRaceID, Draft: s.draft(i)})
		s.Require().NoError(err)
	}

	result, err := s.service.Admit(ctx, Request{SessionID: "sess-hot", RaceID: testRaceID, Draft: s.draft(9)})
	s.Require().NoError(err)
	s.Equal(OutcomeRateLimited, result.Outcome)
	s.Positive(result.RetryAfterSeconds)
}

func (s *ServiceSuite) TestAdmit_RaceNotFound() {
	result, err := s.service.Admit(context.Background(), Request{
		SessionID: "sess-1",
		RaceID:    "race-unknown",
		Draft:     s.draft(1),
	})
	s.Require().NoError(err)
	s.Equal(OutcomeRaceNotFound, result.Outcome)
}

func (s *ServiceSuite) TestAdmit_TooYoungForFederationRace() {
	ctx := context.Background()
	race := catalog.Race{
		ID:                testRaceID,
		EventID:           "event-1",
		Name:              "City 10K",
		Date:              time.Date(2026, time.June, 6, 9, 0, 0, 0, time.UTC),
		GenderRestriction: catalog.GenderAll,
		IsFederationRace:  true,
		FederationCode:    "ATH",
	}
	s.catalog.PutRace(race)
	s.store.SeedRace(race)

	draft := s.draft(1)
	draft.BirthDate = time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.service.Admit(ctx, Request{SessionID: "sess-1", RaceID: testRaceID, Draft: draft})
	s.Error(err)
	s.True(dErrors.Is(err, dErrors.CodeBadRequest))

	count, err := s.store.ConfirmedCount(ctx, testRaceID)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ServiceSuite) TestAdmit_VerificationGate() {
	ctx := context.Background()
	race := catalog.Race{
		ID:                testRaceID,
		EventID:           "event-1",
		Name:              "City 10K",
		Date:              time.Date(2026, time.June, 6, 9, 0, 0, 0, time.UTC),
		GenderRestriction: catalog.GenderAll,
		IsFederationRace:  true,
		FederationCode:    "ATH",
	}
	s.catalog.PutRace(race)
	s.store.SeedRace(race)

	draft := s.draft(1)
	draft.LicenseTypeID = "lt-fed"
	draft.LicenseNumber = "1234567"
	req := Request{SessionID: "sess-1", RaceID: testRaceID, Draft: draft}

	identity := verification.Identity{
		Number:      draft.LicenseNumber,
		Surname:     draft.LastName,
		GivenName:   draft.FirstName,
		Sex:         string(draft.Sex),
		BirthDate:   draft.BirthDate,
		LicenseCode: catalog.LicenseCodeFederation,
	}

	s.Run("unverified federation license blocks submission", func() {
		_, err := s.service.Admit(ctx, req)
		s.Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("verified license admits", func() {
		s.fedMock.Response = &verification.Response{
			Connected: true,
			Identity: &verification.ProviderIdentity{
				Surname:   draft.LastName,
				GivenName: draft.FirstName,
				Sex:       string(draft.Sex),
				BirthDate: draft.BirthDate.Format("02/01/2006"),
			},
		}
		verified, err := s.verifier.Verify(ctx, "sess-1", identity, &race)
		s.Require().NoError(err)
		s.Require().Equal(verification.StateVerified, verified.State)

		result, err := s.service.Admit(ctx, req)
		s.Require().NoError(err)
		s.Equal(OutcomeSuccess, result.Outcome)
	})

	s.Run("editing the surname after verification blocks again", func() {
		edited := req
		edited.SessionID = "sess-2"
		edited.Draft.LastName = "Changed"
		edited.Draft.Email = "changed@example.com"

		verified, err := s.verifier.Verify(ctx, "sess-2", identity, &race)
		s.Require().NoError(err)
		s.Require().Equal(verification.StateVerified, verified.State)

		// The stored result covers the old surname; the edited draft
		// fingerprints differently and is treated as unverified.
		_, err = s.service.Admit(ctx, edited)
		s.Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestAdmit_RecordsAttempts() {
	ctx := context.Background()
	_, err := s.service.Admit(ctx, Request{SessionID: "sess-log", RaceID: testRaceID, Draft: s.draft(1)})
	s.Require().NoError(err)

	s.Eventually(func() bool {
		attempts, err := s.attempts.ListBySession(ctx, "sess-log")
		return err == nil && len(attempts) == 1 && attempts[0].Status == attemptlog.StatusSuccess
	}, time.Second, 10*time.Millisecond)
}

func (s *ServiceSuite) TestAdmit_OptionChoiceSoldOut() {
	ctx := context.Background()
	one := 1
	choice := catalog.OptionChoice{ID: "bus-0800", Label: "8:00 shuttle", Quota: &one}
	s.catalog.PutOption(catalog.OptionDefinition{
		ID: "opt-shuttle", RaceID: testRaceID, Label: "shuttle", IsQuestion: true,
		Choices: []catalog.OptionChoice{choice},
	})
	s.store.SeedChoice(choice)

	first := s.draft(1)
	first.Options = []pricing.SelectedOption{{OptionID: "opt-shuttle", ChoiceID: "bus-0800"}}
	result, err := s.service.Admit(ctx, Request{SessionID: "sess-1", RaceID: testRaceID, Draft: first})
	s.Require().NoError(err)
	s.Require().Equal(OutcomeSuccess, result.Outcome)

	second := s.draft(2)
	second.Options = []pricing.SelectedOption{{OptionID: "opt-shuttle", ChoiceID: "bus-0800"}}
	_, err = s.service.Admit(ctx, Request{SessionID: "sess-2", RaceID: testRaceID, Draft: second})
	s.Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	count, err := s.store.ConfirmedCount(ctx, testRaceID)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ServiceSuite) TestAdmit_OptionsPricedServerSide() {
	ctx := context.Background()
	s.catalog.PutOption(catalog.OptionDefinition{
		ID: "opt-meal", RaceID: testRaceID, Label: "meal", PriceCents: 500,
	})
	s.catalog.PutOption(catalog.OptionDefinition{
		ID: "opt-shirt", RaceID: testRaceID, Label: "shirt", PriceCents: 300, IsQuestion: true,
		Choices: []catalog.OptionChoice{{ID: "xl", Label: "XL", PriceModifierCents: -200}},
	})

	draft := s.draft(1)
	draft.Options = []pricing.SelectedOption{
		{OptionID: "opt-meal"},
		{OptionID: "opt-shirt", ChoiceID: "xl"},
	}
	result, err := s.service.Admit(ctx, Request{SessionID: "sess-1", RaceID: testRaceID, Draft: draft})
	s.Require().NoError(err)
	s.Equal(OutcomeSuccess, result.Outcome)
	// 1000 base + 500 meal + (300 - 200) shirt + 99 fee.
	s.Equal(int64(1699), result.AmountCents)
}
