//go:build integration

// Package containers starts throwaway backing services for integration tests.
package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers Postgres instance with an open
// database handle.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("startline_test"),
		tcpostgres.WithUsername("startline"),
		tcpostgres.WithPassword("startline"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	pc := &PostgresContainer{Container: container, DSN: dsn, DB: db}
	pc.applySchema(t)

	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// Truncate empties the mutable tables between tests.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		TRUNCATE entry_options, entries, athletes, registration_attempts;
		UPDATE races SET confirmed_count = 0;
	`)
	return err
}

func (p *PostgresContainer) applySchema(t *testing.T) {
	t.Helper()
	if _, err := p.DB.Exec(schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
}

const schema = `
CREATE TABLE races (
	id                   TEXT PRIMARY KEY,
	event_id             TEXT NOT NULL,
	name                 TEXT NOT NULL,
	race_date            TIMESTAMPTZ NOT NULL,
	capacity             INTEGER,
	confirmed_count      INTEGER NOT NULL DEFAULT 0,
	gender_restriction   TEXT NOT NULL DEFAULT 'all',
	category_restriction TEXT[] NOT NULL DEFAULT '{}',
	is_federation_race   BOOLEAN NOT NULL DEFAULT FALSE,
	federation_code      TEXT NOT NULL DEFAULT '',
	organizer_name       TEXT NOT NULL DEFAULT '',
	organizer_email      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE pricing_periods (
	id         TEXT PRIMARY KEY,
	race_id    TEXT NOT NULL REFERENCES races(id),
	name       TEXT NOT NULL DEFAULT '',
	start_date TIMESTAMPTZ NOT NULL,
	end_date   TIMESTAMPTZ NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE license_types (
	id   TEXT PRIMARY KEY,
	code TEXT NOT NULL,
	name TEXT NOT NULL
);

CREATE TABLE price_entries (
	race_id         TEXT NOT NULL REFERENCES races(id),
	license_type_id TEXT NOT NULL REFERENCES license_types(id),
	period_id       TEXT NOT NULL REFERENCES pricing_periods(id),
	price_cents     BIGINT NOT NULL,
	PRIMARY KEY (race_id, license_type_id, period_id)
);

CREATE TABLE option_definitions (
	id          TEXT PRIMARY KEY,
	race_id     TEXT NOT NULL REFERENCES races(id),
	label       TEXT NOT NULL,
	price_cents BIGINT NOT NULL DEFAULT 0,
	required    BOOLEAN NOT NULL DEFAULT FALSE,
	is_question BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE option_choices (
	id                   TEXT PRIMARY KEY,
	option_id            TEXT NOT NULL REFERENCES option_definitions(id),
	label                TEXT NOT NULL,
	price_modifier_cents BIGINT NOT NULL DEFAULT 0,
	quota                INTEGER,
	quota_used           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE federation_categories (
	code    TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	min_age INTEGER NOT NULL,
	max_age INTEGER
);

CREATE TABLE athletes (
	id             TEXT PRIMARY KEY,
	first_name     TEXT NOT NULL,
	last_name      TEXT NOT NULL,
	email          TEXT NOT NULL,
	sex            TEXT NOT NULL,
	birth_date     TIMESTAMPTZ NOT NULL,
	club           TEXT NOT NULL DEFAULT '',
	license_number TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE entries (
	id              TEXT PRIMARY KEY,
	athlete_id      TEXT NOT NULL REFERENCES athletes(id),
	race_id         TEXT NOT NULL REFERENCES races(id),
	amount_cents    BIGINT NOT NULL,
	status          TEXT NOT NULL,
	session_token   TEXT NOT NULL DEFAULT '',
	management_code TEXT NOT NULL UNIQUE,
	identity_key    TEXT NOT NULL,
	bib_number      TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX entries_confirmed_identity
	ON entries (race_id, identity_key)
	WHERE status = 'confirmed';

CREATE TABLE entry_options (
	id        TEXT PRIMARY KEY,
	entry_id  TEXT NOT NULL REFERENCES entries(id),
	option_id TEXT NOT NULL,
	choice_id TEXT,
	quantity  INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE registration_attempts (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	race_id    TEXT NOT NULL,
	status     TEXT NOT NULL,
	error_code TEXT NOT NULL DEFAULT '',
	latency_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
