//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema mirrors the production migrations closely enough for store tests.
const schema = `
CREATE TABLE IF NOT EXISTS verification_contexts (
	agency_token        TEXT NOT NULL,
	application_token   TEXT NOT NULL,
	institution_id      TEXT NOT NULL,
	institution_name    TEXT NOT NULL DEFAULT '',
	institution_active  BOOLEAN NOT NULL DEFAULT TRUE,
	institution_start   TEXT NOT NULL DEFAULT '',
	institution_end     TEXT NOT NULL DEFAULT '',
	application_id      TEXT NOT NULL,
	application_name    TEXT NOT NULL DEFAULT '',
	application_active  BOOLEAN NOT NULL DEFAULT TRUE,
	application_start   TEXT NOT NULL DEFAULT '',
	application_end     TEXT NOT NULL DEFAULT '',
	allowed_ips         TEXT NOT NULL DEFAULT '',
	allowed_urls        TEXT NOT NULL DEFAULT '',
	public_key          TEXT NOT NULL DEFAULT '',
	private_key         TEXT NOT NULL DEFAULT '',
	key_start           TEXT NOT NULL DEFAULT '',
	key_end             TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (agency_token, application_token)
);

CREATE TABLE IF NOT EXISTS identity_records (
	subject_id       TEXT NOT NULL UNIQUE,
	ci               TEXT PRIMARY KEY,
	birth_day        TEXT NOT NULL DEFAULT '',
	sub_code         TEXT NOT NULL DEFAULT '',
	user_name        TEXT NOT NULL DEFAULT '',
	issued_ymd       TEXT NOT NULL DEFAULT '',
	mobile_no        TEXT NOT NULL DEFAULT '',
	device_info      TEXT NOT NULL DEFAULT '',
	telecom          TEXT NOT NULL DEFAULT '',
	app_key          TEXT NOT NULL DEFAULT '',
	address1         TEXT NOT NULL DEFAULT '',
	address2         TEXT NOT NULL DEFAULT '',
	photo            BYTEA,
	institution_name TEXT NOT NULL DEFAULT '',
	employment       TEXT NOT NULL DEFAULT 'active',
	credential       TEXT NOT NULL DEFAULT 'normal',
	registered       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS qr_history (
	id             BIGSERIAL PRIMARY KEY,
	token          TEXT NOT NULL,
	subject_id     TEXT NOT NULL DEFAULT '',
	institution_id TEXT NOT NULL,
	application_id TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audit_outbox (
	position       BIGSERIAL PRIMARY KEY,
	id             TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	operation      TEXT NOT NULL,
	stage          TEXT NOT NULL,
	result_code    TEXT NOT NULL DEFAULT '',
	message        TEXT NOT NULL DEFAULT '',
	payload        BYTEA,
	created_at     TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// already applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("idgate"),
		tcpostgres.WithUsername("idgate"),
		tcpostgres.WithPassword("idgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
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

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables empties the named tables. Use between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx,
		fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", ")))
	return err
}
