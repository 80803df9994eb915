package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func checkParseSchema(t *testing.T, v string, majorE, minorE, patchE int) {
	if major, minor, patch, err := ParseSchemaVersion(v); err != nil {
		t.Error(err)
	} else if major != majorE || minor != minorE || patch != patchE {
		t.Errorf("expected %s to parse to [%d,%d,%d] actual [%d,%d,%d]", v, majorE, minorE, patchE, major, minor, patch)
	}
}

func TestParseSchemaVersion(t *testing.T) {
	checkParseSchema(t, "1.2.3", 1, 2, 3)
	checkParseSchema(t, "11.2.3", 11, 2, 3)
	checkParseSchema(t, "0.1.0-rc1", 0, 1, 0)
	if _, _, _, err := ParseSchemaVersion("1.2"); err == nil {
		t.Errorf("expected 1.2 to fail to parse")
	}
}

func TestSchemaVersionOrdering(t *testing.T) {
	less := [][2]string{
		{"0.0.0", "0.0.1"},
		{"0.0.1", "0.1.0"},
		{"0.1.1", "1.0.0"},
		{"9.0.0", "11.0.0"},
		{"junk", "0.0.0"},
	}
	for _, c := range less {
		if !SchemaVersionLess(c[0], c[1]) {
			t.Errorf("expected %s < %s", c[0], c[1])
		}
		if SchemaVersionLess(c[1], c[0]) {
			t.Errorf("expected %s >= %s", c[1], c[0])
		}
	}
	if SchemaVersionLess("0.1.0", "0.1.0") {
		t.Errorf("expected equal versions not to be less")
	}
}

func TestMigrateSchema(t *testing.T) {
	ctx := context.Background()
	s, err := NewInMemorySQLite(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if version, err := s.SchemaVersion(ctx); err != nil {
		t.Fatalf("version: %v", err)
	} else if version != ZeroVersion {
		t.Fatalf("expected %s version, got %s", ZeroVersion, version)
	}

	if err := s.MigrateSchema(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	latest := LatestSchemaVersion()
	if version, err := s.SchemaVersion(ctx); err != nil {
		t.Fatalf("version: %v", err)
	} else if version != latest {
		t.Fatalf("expected %s version, got %s", latest, version)
	}

	// rerunning is a no-op
	if err := s.MigrateSchema(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var applied int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM schema_log`).Scan(&applied); err != nil {
		t.Fatalf("count schema_log: %v", err)
	}
	if applied != len(SchemaMigrations) {
		t.Fatalf("expected %d schema_log rows, got %d", len(SchemaMigrations), applied)
	}
}

func TestMigrateSchemaRejectsUnversionedTables(t *testing.T) {
	ctx := context.Background()
	s, err := NewInMemorySQLite(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	legacy := []string{
		`CREATE TABLE Tournaments (
			tournament_id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL CHECK(type IN ('Singles', 'Doubles')),
			categories TEXT NOT NULL,
			date_from TEXT NOT NULL,
			date_to TEXT NOT NULL,
			courts INTEGER NOT NULL,
			password TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE Players (
			player_id INTEGER PRIMARY KEY AUTOINCREMENT,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			club TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE Players_In_Tournaments (
			player_id INTEGER NOT NULL,
			tournament_id INTEGER NOT NULL,
			partner_id INTEGER,
			FOREIGN KEY (player_id) REFERENCES Players (player_id),
			FOREIGN KEY (tournament_id) REFERENCES Tournaments (tournament_id),
			FOREIGN KEY (partner_id) REFERENCES Players (player_id)
		)`,
	}
	for _, stmt := range legacy {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	err = s.MigrateSchema(ctx)
	if !errors.Is(err, ErrUnversionedSchema) {
		t.Fatalf("expected ErrUnversionedSchema, got %v", err)
	}
	if !strings.Contains(err.Error(), "Players_In_Tournaments") {
		t.Fatalf("expected error to name the existing tables, got %v", err)
	}
	if version, err := s.SchemaVersion(ctx); err != nil {
		t.Fatalf("version: %v", err)
	} else if version != ZeroVersion {
		t.Fatalf("expected no version to be recorded, got %s", version)
	}
}

func TestSchemaConstraints(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	statements := []string{
		`INSERT INTO Tournaments (name, type, date_from, date_to, password) VALUES ('Bad type', 'Mixed', '2024-01-01', '2024-01-01', 'p')`,
		`INSERT INTO Tournaments (name, type, date_from, date_to, password) VALUES ('Backwards', 'Singles', '2024-01-02', '2024-01-01', 'p')`,
		`INSERT INTO Tournaments (name, type, date_from, date_to, courts, password) VALUES ('No courts', 'Singles', '2024-01-01', '2024-01-01', 0, 'p')`,
		`INSERT INTO Players_In_Tournaments (player_id, tournament_id) VALUES (1, 1)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err == nil {
			t.Errorf("expected constraint failure for %s", stmt)
		}
	}
}
