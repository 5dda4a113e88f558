package db

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var migrationName = regexp.MustCompile(`^(\d{6})_[a-z0-9_]+\.(up|down)\.sql$`)

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		m := migrationName.FindStringSubmatch(e.Name())
		require.NotNil(t, m, "bad migration filename %q", e.Name())
		base := strings.TrimSuffix(strings.TrimSuffix(e.Name(), ".up.sql"), ".down.sql")
		if m[2] == "up" {
			ups[base] = true
		} else {
			downs[base] = true
		}
	}
	require.Equal(t, ups, downs)
}

func TestQuotesMigrationEnforcesTokenUniqueness(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000002_quotes.up.sql")
	require.NoError(t, err)
	sql := string(data)
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS quotes",
		"CONSTRAINT quotes_approval_token_hash_key UNIQUE (approval_token_hash)",
		"approval_token_expires_at TIMESTAMPTZ",
		"WHERE status = 'sent'",
	} {
		require.Contains(t, sql, want)
	}
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/quotes?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/quotes?sslmode=disable"))
	require.Equal(t, "pgx5://db/quotes", migrateURL("postgresql://db/quotes"))
	require.Equal(t, "pgx5://db/quotes", migrateURL("pgx5://db/quotes"))
}
