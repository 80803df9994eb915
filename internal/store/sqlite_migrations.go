package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var ZeroVersion = "0.0.0"

// ErrUnversionedSchema is returned by MigrateSchema for a database that has
// tables but no schema_log, such as one written by an older release.
var ErrUnversionedSchema = errors.New("database has tables but no schema_log")

// SchemaMigrations defines a sequence of idempotent changes to the schema,
// starting from a clean sqlite database. Versions are applied in order and
// recorded in schema_log.
var SchemaMigrations = map[string][]string{
	"0.0.1": {
		`CREATE TABLE IF NOT EXISTS schema_log (
			version TEXT NOT NULL PRIMARY KEY,
			date_applied TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	"0.1.0": {
		`CREATE TABLE IF NOT EXISTS Tournaments (
			tournament_id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL CHECK (type IN ('Singles', 'Doubles')),
			categories TEXT NOT NULL DEFAULT '',
			date_from TEXT NOT NULL,
			date_to TEXT NOT NULL,
			courts INTEGER CHECK (courts IS NULL OR courts > 0),
			password TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (date_from <= date_to)
		)`,
		`CREATE TABLE IF NOT EXISTS Players (
			player_id INTEGER PRIMARY KEY AUTOINCREMENT,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL DEFAULT '',
			club TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS Players_In_Tournaments (
			registration_id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_id INTEGER NOT NULL REFERENCES Players (player_id),
			tournament_id INTEGER NOT NULL REFERENCES Tournaments (tournament_id),
			partner_id INTEGER REFERENCES Players (player_id),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (player_id, tournament_id),
			CHECK (partner_id IS NULL OR partner_id <> player_id)
		)`,
	},
	"0.1.1": {
		`CREATE INDEX IF NOT EXISTS idx_tournaments_date_to ON Tournaments (date_to)`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_tournament ON Players_In_Tournaments (tournament_id)`,
	},
}

var schemaVersionRegex = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

func ParseSchemaVersion(s string) (int, int, int, error) {
	ss := schemaVersionRegex.FindStringSubmatch(s)
	if ss == nil {
		return 0, 0, 0, fmt.Errorf("unable to parse schema version %q", s)
	}
	var parts [3]int
	for i := range parts {
		n, err := strconv.Atoi(ss[i+1])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("parsing schema version %q: %w", s, err)
		}
		parts[i] = n
	}
	return parts[0], parts[1], parts[2], nil
}

// SchemaVersionLess orders versions by major, minor, then patch. Unparseable
// versions sort first.
func SchemaVersionLess(a, b string) bool {
	major1, minor1, patch1, err1 := ParseSchemaVersion(a)
	major2, minor2, patch2, err2 := ParseSchemaVersion(b)
	if err1 != nil || err2 != nil {
		return err1 != nil && err2 == nil
	}
	if major1 != major2 {
		return major1 < major2
	}
	if minor1 != minor2 {
		return minor1 < minor2
	}
	return patch1 < patch2
}

func schemaVersionKeys(migrations map[string][]string) []string {
	versions := make([]string, 0, len(migrations))
	for k := range migrations {
		versions = append(versions, k)
	}
	sort.Slice(versions, func(i, j int) bool { return SchemaVersionLess(versions[i], versions[j]) })
	return versions
}

// LatestSchemaVersion is the highest version defined in SchemaMigrations.
func LatestSchemaVersion() string {
	versions := schemaVersionKeys(SchemaMigrations)
	return versions[len(versions)-1]
}

// SchemaVersion returns the highest applied version. The lack of a
// schema_log table is taken to imply a clean database.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (string, error) {
	var hasVersionTable bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'schema_log'`,
	).Scan(&hasVersionTable); err != nil {
		return "", classifySQLiteError(err)
	}
	if !hasVersionTable {
		return ZeroVersion, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_log`)
	if err != nil {
		return "", classifySQLiteError(err)
	}
	defer rows.Close()

	current := ZeroVersion
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return "", err
		}
		if SchemaVersionLess(current, version) {
			current = version
		}
	}
	return current, rows.Err()
}

// unversionedTables lists user tables in a database without schema_log.
func (s *SQLiteStore) unversionedTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' AND name <> 'schema_log'
		ORDER BY name`)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// MigrateSchema upgrades the schema to LatestSchemaVersion, one transaction
// per version. A database holding tables it did not create is left untouched
// and reported with ErrUnversionedSchema.
func (s *SQLiteStore) MigrateSchema(ctx context.Context) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current == ZeroVersion {
		tables, err := s.unversionedTables(ctx)
		if err != nil {
			return err
		}
		if len(tables) > 0 {
			return fmt.Errorf("%w (found %s); point DATABASE_PATH at a new file", ErrUnversionedSchema, strings.Join(tables, ", "))
		}
	}
	logger := zerolog.Ctx(ctx)

	for _, version := range schemaVersionKeys(SchemaMigrations) {
		if !SchemaVersionLess(current, version) {
			continue
		}
		err := s.transaction(ctx, func(tx *sql.Tx) error {
			for _, command := range SchemaMigrations[version] {
				if _, err := tx.ExecContext(ctx, command); err != nil {
					return fmt.Errorf("applying schema %s: %w", version, err)
				}
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_log (version) VALUES (?)`, version)
			return err
		})
		if err != nil {
			return err
		}
		logger.Info().Str("version", version).Msg("applied schema migration")
	}
	return nil
}
