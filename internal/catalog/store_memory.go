package catalog

import (
	"context"
	"sort"
	"sync"

	"startline/pkg/platform/sentinel"
)

// InMemoryStore is a map-backed catalog used in unit tests and local
// development. Seed it through the Put helpers before use.
type InMemoryStore struct {
	mu         sync.RWMutex
	races      map[RaceID]*Race
	periods    map[RaceID][]PricingPeriod
	prices     map[RaceID]map[LicenseTypeID]map[PeriodID]*PriceEntry
	licenses   map[LicenseTypeID]*LicenseType
	options    map[RaceID][]OptionDefinition
	categories map[string]FederationCategory
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		races:      make(map[RaceID]*Race),
		periods:    make(map[RaceID][]PricingPeriod),
		prices:     make(map[RaceID]map[LicenseTypeID]map[PeriodID]*PriceEntry),
		licenses:   make(map[LicenseTypeID]*LicenseType),
		options:    make(map[RaceID][]OptionDefinition),
		categories: make(map[string]FederationCategory),
	}
}

func (s *InMemoryStore) PutRace(race Race) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := race
	s.races[race.ID] = &copied
}

func (s *InMemoryStore) PutPricingPeriod(period PricingPeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	periods := append(s.periods[period.RaceID], period)
	// Deterministic "first match wins" ordering.
	sort.Slice(periods, func(i, j int) bool { return periods[i].StartDate.Before(periods[j].StartDate) })
	s.periods[period.RaceID] = periods
}

func (s *InMemoryStore) PutPriceEntry(entry PriceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byLicense, ok := s.prices[entry.RaceID]
	if !ok {
		byLicense = make(map[LicenseTypeID]map[PeriodID]*PriceEntry)
		s.prices[entry.RaceID] = byLicense
	}
	byPeriod, ok := byLicense[entry.LicenseTypeID]
	if !ok {
		byPeriod = make(map[PeriodID]*PriceEntry)
		byLicense[entry.LicenseTypeID] = byPeriod
	}
	copied := entry
	byPeriod[entry.PeriodID] = &copied
}

func (s *InMemoryStore) PutLicenseType(lt LicenseType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := lt
	s.licenses[lt.ID] = &copied
}

func (s *InMemoryStore) PutOption(option OptionDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[option.RaceID] = append(s.options[option.RaceID], option)
}

func (s *InMemoryStore) PutCategory(category FederationCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category.Code] = category
}

func (s *InMemoryStore) GetRace(_ context.Context, raceID RaceID) (*Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	race, ok := s.races[raceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *race
	return &copied, nil
}

func (s *InMemoryStore) ListPricingPeriods(_ context.Context, raceID RaceID) ([]PricingPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PricingPeriod{}, s.periods[raceID]...), nil
}

func (s *InMemoryStore) GetPriceEntry(_ context.Context, raceID RaceID, licenseTypeID LicenseTypeID, periodID PeriodID) (*PriceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.prices[raceID][licenseTypeID][periodID]
	if entry == nil {
		return nil, sentinel.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (s *InMemoryStore) GetLicenseType(_ context.Context, licenseTypeID LicenseTypeID) (*LicenseType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lt, ok := s.licenses[licenseTypeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *lt
	return &copied, nil
}

func (s *InMemoryStore) ListOptions(_ context.Context, raceID RaceID) ([]OptionDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]OptionDefinition{}, s.options[raceID]...), nil
}

func (s *InMemoryStore) ListCategories(_ context.Context, codes []string) ([]FederationCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]FederationCategory, 0, len(codes))
	for _, code := range codes {
		if category, ok := s.categories[code]; ok {
			result = append(result, category)
		}
	}
	return result, nil
}
