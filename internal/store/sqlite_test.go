package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSQLiteDSN(t *testing.T) {
	cases := []struct {
		path, want string
	}{
		{":memory:", "file::memory:?_foreign_keys=1"},
		{"data/tournaments.db", "file:data/tournaments.db?"},
		{"odd?name#1%.db", "file:odd%3fname%231%25.db?"},
	}
	for _, c := range cases {
		got := sqliteDSN(c.path)
		if !strings.HasPrefix(got, c.want) {
			t.Errorf("sqliteDSN(%q) = %q, want prefix %q", c.path, got, c.want)
		}
	}
}

func TestOpenSQLiteEscapedPath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "club?cup#1.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.MigrateSchema(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	addTournament(t, s, "Escaped", "2024-01-01", "2024-01-02")

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database at %s: %v", path, err)
	}
}
