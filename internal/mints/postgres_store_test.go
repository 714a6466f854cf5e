package mints

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordColumns = []string{
	"session", "prompt", "recipient", "state", "failed_step", "error", "name",
	"image_uri", "metadata_uri", "mint_address", "mint_signature", "transfer_signature",
	"created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresStoreWithDB(db), mock
}

func TestPostgresStore_SaveUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO mint_runs .* ON CONFLICT \(session\) DO UPDATE SET recipient = EXCLUDED\.recipient, state = EXCLUDED\.state,`).
		WithArgs("s1", "a fox", "NewOwner", "failed", "transfer", "rpc down", "Fox",
			"https://img", "https://meta", "Mint111", "sigM", "",
			created, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Save(context.Background(), Record{
		Session:       "s1",
		Prompt:        "a fox",
		Recipient:     "NewOwner",
		State:         StateFailed,
		FailedStep:    "transfer",
		Error:         "rpc down",
		Name:          "Fox",
		ImageURI:      "https://img",
		MetadataURI:   "https://meta",
		MintAddress:   "Mint111",
		MintSignature: "sigM",
		CreatedAt:     created,
	})
	require.NoError(t, err)
}

func TestPostgresStore_SaveError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO mint_runs`).WillReturnError(errors.New("connection reset"))

	err := store.Save(context.Background(), Record{Session: "s1", State: StateReceived})
	assert.ErrorContains(t, err, "mints: save s1: connection reset")
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM mint_runs WHERE session = \$1`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(
			"s1", "a fox", "Owner", "minted", "", "", "Fox",
			"https://img", "https://meta", "Mint111", "sigM", "",
			now, now,
		))
	mock.ExpectQuery(`SELECT .* FROM mint_runs WHERE session = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	rec, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StateMinted, rec.State)
	assert.Equal(t, "Mint111", rec.MintAddress)
	assert.Equal(t, now, rec.CreatedAt)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_ListByState(t *testing.T) {
	store, mock := newMockStore(t)
	newer := time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(`SELECT .* FROM mint_runs WHERE state = \$1 ORDER BY updated_at DESC LIMIT \$2`).
		WithArgs("failed", 50).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("s2", "p2", "O2", "failed", "transfer", "x", "", "", "", "M2", "", "", newer, newer).
			AddRow("s1", "p1", "O1", "failed", "image", "y", "", "", "", "", "", "", older, older))
	mock.ExpectQuery(`SELECT .* FROM mint_runs WHERE state = \$1`).
		WithArgs("completed", 5).
		WillReturnError(errors.New("timeout"))

	recs, err := store.ListByState(context.Background(), StateFailed, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "s2", recs[0].Session)
	assert.Equal(t, "transfer", recs[0].FailedStep)
	assert.Equal(t, StateFailed, recs[1].State)

	_, err = store.ListByState(context.Background(), StateCompleted, 5)
	assert.ErrorContains(t, err, "timeout")
}
