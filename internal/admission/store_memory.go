package admission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"startline/internal/catalog"
	"startline/pkg/platform/sentinel"
)

// raceState is the memory store's authoritative view of one race's places.
type raceState struct {
	capacity       *int
	confirmedCount int
}

// InMemoryStore implements Store with a single mutex guarding all race
// state, which makes the whole Admit call one atomic unit. Good enough for
// tests and single-instance development; production uses Postgres.
// choiceState tracks one option choice's quantity cap.
type choiceState struct {
	quota *int
	used  int
}

type InMemoryStore struct {
	mu      sync.Mutex
	races   map[catalog.RaceID]*raceState
	entries map[string]*Entry
	// identity and license indexes for duplicate detection, keyed per race.
	byIdentity map[catalog.RaceID]map[string]string // identity key -> first name
	byLicense  map[catalog.RaceID]map[string]string // license number -> first name
	choices    map[catalog.ChoiceID]*choiceState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		races:      make(map[catalog.RaceID]*raceState),
		entries:    make(map[string]*Entry),
		byIdentity: make(map[catalog.RaceID]map[string]string),
		byLicense:  make(map[catalog.RaceID]map[string]string),
		choices:    make(map[catalog.ChoiceID]*choiceState),
	}
}

// SeedRace registers a race's capacity with the store.
func (s *InMemoryStore) SeedRace(race catalog.Race) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := &raceState{confirmedCount: race.ConfirmedCount}
	if race.Capacity != nil {
		c := *race.Capacity
		state.capacity = &c
	}
	s.races[race.ID] = state
	if s.byIdentity[race.ID] == nil {
		s.byIdentity[race.ID] = make(map[string]string)
	}
	if s.byLicense[race.ID] == nil {
		s.byLicense[race.ID] = make(map[string]string)
	}
}

// SeedChoice registers an option choice's quota with the store. Choices
// never seeded are treated as uncapped.
func (s *InMemoryStore) SeedChoice(choice catalog.OptionChoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := &choiceState{used: choice.QuotaUsed}
	if choice.Quota != nil {
		q := *choice.Quota
		state.quota = &q
	}
	s.choices[choice.ID] = state
}

func (s *InMemoryStore) Admit(ctx context.Context, params AdmitParams) (*AdmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	race, ok := s.races[params.RaceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if race.capacity != nil && race.confirmedCount >= *race.capacity {
		return nil, sentinel.ErrCapacityExhausted
	}

	identityKey := params.Athlete.IdentityKey()
	if firstName, dup := s.byIdentity[params.RaceID][identityKey]; dup {
		return nil, &DuplicateError{FirstName: firstName}
	}
	if params.Athlete.LicenseNumber != "" {
		if firstName, dup := s.byLicense[params.RaceID][params.Athlete.LicenseNumber]; dup {
			return nil, &DuplicateError{FirstName: firstName}
		}
	}

	for _, option := range params.Options {
		if option.ChoiceID == "" {
			continue
		}
		state, tracked := s.choices[option.ChoiceID]
		if tracked && state.quota != nil && state.used >= *state.quota {
			return nil, &ChoiceQuotaError{ChoiceID: option.ChoiceID}
		}
	}

	amount, err := params.Price(ctx)
	if err != nil {
		return nil, err
	}

	athlete := params.Athlete
	athlete.ID = uuid.NewString()
	entry := &Entry{
		ID:             uuid.NewString(),
		AthleteID:      athlete.ID,
		RaceID:         params.RaceID,
		AmountCents:    amount,
		Status:         EntryStatusConfirmed,
		SessionToken:   params.SessionToken,
		ManagementCode: params.ManagementCode,
		CreatedAt:      time.Now(),
	}
	s.entries[entry.ID] = entry
	for _, option := range params.Options {
		if state, tracked := s.choices[option.ChoiceID]; tracked {
			state.used++
		}
	}
	s.byIdentity[params.RaceID][identityKey] = athlete.FirstName
	if athlete.LicenseNumber != "" {
		s.byLicense[params.RaceID][athlete.LicenseNumber] = athlete.FirstName
	}
	race.confirmedCount++

	result := &AdmitResult{EntryID: entry.ID, AmountCents: amount}
	if race.capacity != nil {
		remaining := *race.capacity - race.confirmedCount
		result.PlacesRemaining = &remaining
	}
	return result, nil
}

func (s *InMemoryStore) ConfirmedCount(_ context.Context, raceID catalog.RaceID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	race, ok := s.races[raceID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return race.confirmedCount, nil
}

func (s *InMemoryStore) GetEntry(_ context.Context, entryID string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}
