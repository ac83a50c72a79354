package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"startline/pkg/platform/sentinel"
	txcontext "startline/pkg/platform/tx"
)

// PostgresStore reads catalog data from the organizer-owned tables.
// All queries join an ambient transaction when one is set in context so the
// admission path sees a consistent snapshot.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetRace(ctx context.Context, raceID RaceID) (*Race, error) {
	query := `
		SELECT id, event_id, name, race_date, capacity, confirmed_count,
		       gender_restriction, category_restriction, is_federation_race, federation_code,
		       organizer_name, organizer_email
		FROM races WHERE id = $1
	`
	var race Race
	var capacity sql.NullInt64
	var restriction pq.StringArray
	err := txcontext.RunnerFrom(ctx, s.db).QueryRowContext(ctx, query, string(raceID)).Scan(
		&race.ID, &race.EventID, &race.Name, &race.Date, &capacity,
		&race.ConfirmedCount, &race.GenderRestriction, &restriction,
		&race.IsFederationRace, &race.FederationCode,
		&race.OrganizerName, &race.OrganizerEmail,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get race: %w", err)
	}
	if capacity.Valid {
		c := int(capacity.Int64)
		race.Capacity = &c
	}
	race.CategoryRestriction = restriction
	return &race, nil
}

func (s *PostgresStore) ListPricingPeriods(ctx context.Context, raceID RaceID) ([]PricingPeriod, error) {
	query := `
		SELECT id, race_id, name, start_date, end_date, active
		FROM pricing_periods WHERE race_id = $1
		ORDER BY start_date
	`
	rows, err := txcontext.RunnerFrom(ctx, s.db).QueryContext(ctx, query, string(raceID))
	if err != nil {
		return nil, fmt.Errorf("list pricing periods: %w", err)
	}
	defer rows.Close()

	var periods []PricingPeriod
	for rows.Next() {
		var p PricingPeriod
		if err := rows.Scan(&p.ID, &p.RaceID, &p.Name, &p.StartDate, &p.EndDate, &p.Active); err != nil {
			return nil, fmt.Errorf("scan pricing period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (s *PostgresStore) GetPriceEntry(ctx context.Context, raceID RaceID, licenseTypeID LicenseTypeID, periodID PeriodID) (*PriceEntry, error) {
	query := `
		SELECT race_id, license_type_id, period_id, price_cents
		FROM price_entries
		WHERE race_id = $1 AND license_type_id = $2 AND period_id = $3
	`
	var entry PriceEntry
	err := txcontext.RunnerFrom(ctx, s.db).QueryRowContext(ctx, query,
		string(raceID), string(licenseTypeID), string(periodID)).Scan(
		&entry.RaceID, &entry.LicenseTypeID, &entry.PeriodID, &entry.PriceCents,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get price entry: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) GetLicenseType(ctx context.Context, licenseTypeID LicenseTypeID) (*LicenseType, error) {
	query := `SELECT id, code, name FROM license_types WHERE id = $1`
	var lt LicenseType
	err := txcontext.RunnerFrom(ctx, s.db).QueryRowContext(ctx, query, string(licenseTypeID)).Scan(
		&lt.ID, &lt.Code, &lt.Name,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get license type: %w", err)
	}
	return &lt, nil
}

func (s *PostgresStore) ListOptions(ctx context.Context, raceID RaceID) ([]OptionDefinition, error) {
	query := `
		SELECT id, race_id, label, price_cents, required, is_question
		FROM option_definitions WHERE race_id = $1
		ORDER BY id
	`
	runner := txcontext.RunnerFrom(ctx, s.db)
	rows, err := runner.QueryContext(ctx, query, string(raceID))
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	var options []OptionDefinition
	for rows.Next() {
		var o OptionDefinition
		if err := rows.Scan(&o.ID, &o.RaceID, &o.Label, &o.PriceCents, &o.Required, &o.IsQuestion); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range options {
		choices, err := s.listChoices(ctx, runner, options[i].ID)
		if err != nil {
			return nil, err
		}
		options[i].Choices = choices
	}
	return options, nil
}

func (s *PostgresStore) listChoices(ctx context.Context, runner txcontext.Runner, optionID OptionID) ([]OptionChoice, error) {
	query := `
		SELECT id, label, price_modifier_cents, quota, quota_used
		FROM option_choices WHERE option_id = $1
		ORDER BY id
	`
	rows, err := runner.QueryContext(ctx, query, string(optionID))
	if err != nil {
		return nil, fmt.Errorf("list option choices: %w", err)
	}
	defer rows.Close()

	var choices []OptionChoice
	for rows.Next() {
		var c OptionChoice
		var quota sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Label, &c.PriceModifierCents, &quota, &c.QuotaUsed); err != nil {
			return nil, fmt.Errorf("scan option choice: %w", err)
		}
		if quota.Valid {
			q := int(quota.Int64)
			c.Quota = &q
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}

func (s *PostgresStore) ListCategories(ctx context.Context, codes []string) ([]FederationCategory, error) {
	query := `
		SELECT code, name, min_age, max_age
		FROM federation_categories WHERE code = ANY($1)
		ORDER BY min_age
	`
	rows, err := txcontext.RunnerFrom(ctx, s.db).QueryContext(ctx, query, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []FederationCategory
	for rows.Next() {
		var c FederationCategory
		var maxAge sql.NullInt64
		if err := rows.Scan(&c.Code, &c.Name, &c.MinAge, &maxAge); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if maxAge.Valid {
			m := int(maxAge.Int64)
			c.MaxAge = &m
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
