package admission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"startline/internal/catalog"
	"startline/pkg/platform/sentinel"
	txcontext "startline/pkg/platform/tx"
)

// PostgresStore runs admissions against the system of record.
//
// Concurrency design: the race row is locked with SELECT ... FOR UPDATE
// inside a serializable transaction, so capacity-check-then-increment and
// duplicate-check-then-insert are bound into one atomic unit. A partial
// unique index on confirmed entries backs the duplicate check as a second
// line of defense against interleavings the row lock cannot see.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Admit(ctx context.Context, params AdmitParams) (result *AdmitResult, err error) {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin admission tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	ctx = txcontext.WithTx(ctx, sqlTx)

	var capacity sql.NullInt64
	var confirmedCount int
	row := sqlTx.QueryRowContext(ctx,
		`SELECT capacity, confirmed_count FROM races WHERE id = $1 FOR UPDATE`,
		string(params.RaceID))
	if err = row.Scan(&capacity, &confirmedCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock race row: %w", err)
	}

	if capacity.Valid && int64(confirmedCount) >= capacity.Int64 {
		return nil, sentinel.ErrCapacityExhausted
	}

	if err = s.checkDuplicate(ctx, sqlTx, params); err != nil {
		return nil, err
	}

	if err = s.reserveChoices(ctx, sqlTx, params); err != nil {
		return nil, err
	}

	// Recompute the price inside the transaction: the catalog reads join
	// this snapshot through the tx in context.
	amount, err := params.Price(ctx)
	if err != nil {
		return nil, err
	}

	athleteID := uuid.NewString()
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO athletes (id, first_name, last_name, email, sex, birth_date, club, license_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, athleteID, params.Athlete.FirstName, params.Athlete.LastName, params.Athlete.Email,
		string(params.Athlete.Sex), params.Athlete.BirthDate, params.Athlete.Club,
		params.Athlete.LicenseNumber, time.Now())
	if err != nil {
		return nil, fmt.Errorf("insert athlete: %w", err)
	}

	entryID := uuid.NewString()
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO entries (id, athlete_id, race_id, amount_cents, status, session_token, management_code, identity_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entryID, athleteID, string(params.RaceID), amount, string(EntryStatusConfirmed),
		params.SessionToken, params.ManagementCode, params.Athlete.IdentityKey(), time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateError{FirstName: params.Athlete.FirstName}
		}
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	for _, option := range params.Options {
		quantity := option.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO entry_options (id, entry_id, option_id, choice_id, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), entryID, string(option.OptionID), nullIfEmpty(string(option.ChoiceID)), quantity)
		if err != nil {
			return nil, fmt.Errorf("insert entry option: %w", err)
		}
	}

	_, err = sqlTx.ExecContext(ctx,
		`UPDATE races SET confirmed_count = confirmed_count + 1 WHERE id = $1`,
		string(params.RaceID))
	if err != nil {
		return nil, fmt.Errorf("increment confirmed count: %w", err)
	}

	if err = sqlTx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return nil, fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
		}
		return nil, fmt.Errorf("commit admission tx: %w", err)
	}

	result = &AdmitResult{EntryID: entryID, AmountCents: amount}
	if capacity.Valid {
		remaining := int(capacity.Int64) - confirmedCount - 1
		result.PlacesRemaining = &remaining
	}
	return result, nil
}

// checkDuplicate looks for an existing confirmed entry for the same athlete
// identity (name + birthdate + email) or the same license number.
func (s *PostgresStore) checkDuplicate(ctx context.Context, sqlTx *sql.Tx, params AdmitParams) error {
	var firstName string
	err := sqlTx.QueryRowContext(ctx, `
		SELECT a.first_name
		FROM entries e
		JOIN athletes a ON a.id = e.athlete_id
		WHERE e.race_id = $1
		  AND e.status = $2
		  AND (e.identity_key = $3 OR ($4 <> '' AND a.license_number = $4))
		LIMIT 1
	`, string(params.RaceID), string(EntryStatusConfirmed),
		params.Athlete.IdentityKey(), params.Athlete.LicenseNumber).Scan(&firstName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	return &DuplicateError{FirstName: firstName}
}

// reserveChoices locks each selected option choice row, rejects capped-out
// choices, and claims one unit of quota. Unknown choice IDs are skipped;
// pricing ignores them too.
func (s *PostgresStore) reserveChoices(ctx context.Context, sqlTx *sql.Tx, params AdmitParams) error {
	for _, option := range params.Options {
		if option.ChoiceID == "" {
			continue
		}
		var quota sql.NullInt64
		var used int
		err := sqlTx.QueryRowContext(ctx,
			`SELECT quota, quota_used FROM option_choices WHERE id = $1 FOR UPDATE`,
			string(option.ChoiceID)).Scan(&quota, &used)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("lock option choice: %w", err)
		}
		if quota.Valid && int64(used) >= quota.Int64 {
			return &ChoiceQuotaError{ChoiceID: option.ChoiceID}
		}
		_, err = sqlTx.ExecContext(ctx,
			`UPDATE option_choices SET quota_used = quota_used + 1 WHERE id = $1`,
			string(option.ChoiceID))
		if err != nil {
			return fmt.Errorf("claim option choice quota: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ConfirmedCount(ctx context.Context, raceID catalog.RaceID) (int, error) {
	var count int
	err := txcontext.RunnerFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT confirmed_count FROM races WHERE id = $1`, string(raceID)).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("confirmed count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, entryID string) (*Entry, error) {
	var entry Entry
	var bib sql.NullString
	err := txcontext.RunnerFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, athlete_id, race_id, amount_cents, status, session_token, management_code, bib_number, created_at
		FROM entries WHERE id = $1
	`, entryID).Scan(&entry.ID, &entry.AthleteID, &entry.RaceID, &entry.AmountCents,
		&entry.Status, &entry.SessionToken, &entry.ManagementCode, &bib, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	entry.BibNumber = bib.String
	return &entry, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
