package mints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS mint_runs (
	session            TEXT PRIMARY KEY,
	prompt             TEXT NOT NULL,
	recipient          TEXT NOT NULL,
	state              TEXT NOT NULL,
	failed_step        TEXT NOT NULL DEFAULT '',
	error              TEXT NOT NULL DEFAULT '',
	name               TEXT NOT NULL DEFAULT '',
	image_uri          TEXT NOT NULL DEFAULT '',
	metadata_uri       TEXT NOT NULL DEFAULT '',
	mint_address       TEXT NOT NULL DEFAULT '',
	mint_signature     TEXT NOT NULL DEFAULT '',
	transfer_signature TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS mint_runs_state_idx ON mint_runs (state, updated_at DESC);
`

const selectColumns = `
	session, prompt, recipient, state, failed_step, error, name,
	image_uri, metadata_uri, mint_address, mint_signature, transfer_signature,
	created_at, updated_at
`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewPostgresStoreWithDB(db), nil
}

// NewPostgresStoreWithDB wraps an already opened database.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	rec = stamp(rec, time.Now())

	query := `
		INSERT INTO mint_runs (
			session, prompt, recipient, state, failed_step, error, name,
			image_uri, metadata_uri, mint_address, mint_signature, transfer_signature,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session) DO UPDATE SET
			recipient = EXCLUDED.recipient,
			state = EXCLUDED.state,
			failed_step = EXCLUDED.failed_step,
			error = EXCLUDED.error,
			name = EXCLUDED.name,
			image_uri = EXCLUDED.image_uri,
			metadata_uri = EXCLUDED.metadata_uri,
			mint_address = EXCLUDED.mint_address,
			mint_signature = EXCLUDED.mint_signature,
			transfer_signature = EXCLUDED.transfer_signature,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.Session, rec.Prompt, rec.Recipient, string(rec.State), rec.FailedStep, rec.Error, rec.Name,
		rec.ImageURI, rec.MetadataURI, rec.MintAddress, rec.MintSignature, rec.TransferSignature,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("mints: save %s: %w", rec.Session, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, session string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM mint_runs WHERE session = $1`, session)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("mints: get %s: %w", session, err)
	}
	return rec, nil
}

func (s *PostgresStore) ListByState(ctx context.Context, state State, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM mint_runs WHERE state = $1 ORDER BY updated_at DESC LIMIT $2`,
		string(state), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("mints: list %s: %w", state, err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var state string
	err := row.Scan(
		&rec.Session, &rec.Prompt, &rec.Recipient, &state, &rec.FailedStep, &rec.Error, &rec.Name,
		&rec.ImageURI, &rec.MetadataURI, &rec.MintAddress, &rec.MintSignature, &rec.TransferSignature,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	rec.State = State(state)
	return rec, err
}
