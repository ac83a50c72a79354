package catalog

import "context"

// Store exposes the reference data reads the engine needs. Implementations
// must return sentinel.ErrNotFound (wrapped or bare) for missing records.
type Store interface {
	GetRace(ctx context.Context, raceID RaceID) (*Race, error)
	ListPricingPeriods(ctx context.Context, raceID RaceID) ([]PricingPeriod, error)
	GetPriceEntry(ctx context.Context, raceID RaceID, licenseTypeID LicenseTypeID, periodID PeriodID) (*PriceEntry, error)
	GetLicenseType(ctx context.Context, licenseTypeID LicenseTypeID) (*LicenseType, error)
	ListOptions(ctx context.Context, raceID RaceID) ([]OptionDefinition, error)
	ListCategories(ctx context.Context, codes []string) ([]FederationCategory, error)
}
