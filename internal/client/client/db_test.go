package client

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func TestInitDatabase_CreatesSessionTable(t *testing.T) {
	ctx := context.Background()
	db, err := InitDatabase(ctx, filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx,
		`INSERT INTO session (id, username, access_token, refresh_token, updated_at) VALUES (1, ?, ?, ?, ?)`,
		"alice", "a", "r", 0)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO session (id, username, access_token, refresh_token, updated_at) VALUES (2, ?, ?, ?, ?)`,
		"bob", "a", "r", 0)
	require.Error(t, err, "only one session row is allowed")

	// migrations are idempotent
	require.NoError(t, RunMigrations(ctx, db))
}

func TestInitDatabase_MigrationError(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	boom := errors.New("boom")
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom }

	_, err := InitDatabase(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.ErrorIs(t, err, boom)
}
