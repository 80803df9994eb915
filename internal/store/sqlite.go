package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"tourney-backend/internal/models"

	"cloud.google.com/go/civil"
	"github.com/mattn/go-sqlite3"
)

const memoryPath = ":memory:"

// SQLiteStore is the relational backend. One *sql.DB pool is shared by all
// requests; foreign keys are enforced on every connection.
type SQLiteStore struct {
	db *sql.DB
}

// uriPathEscaper escapes the characters SQLite's URI parser treats as
// delimiters. SQLite decodes %HH escapes in the path.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func sqliteDSN(path string) string {
	if path == memoryPath {
		return "file::memory:?_foreign_keys=1"
	}
	return "file:" + uriPathEscaper.Replace(path) + "?_foreign_keys=1&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
}

// OpenSQLite opens (creating if needed) the database at path. The schema is
// not migrated; call MigrateSchema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if path == memoryPath {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting sqlite %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewInMemorySQLite opens a private in-memory database.
func NewInMemorySQLite(ctx context.Context) (*SQLiteStore, error) {
	return OpenSQLite(ctx, memoryPath)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// transaction commits iff f returns no error.
func (s *SQLiteStore) transaction(ctx context.Context, f func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifySQLiteError(err)
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return classifySQLiteError(tx.Commit())
}

// classifySQLiteError maps driver errors onto the model error kinds.
func classifySQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrTimeout, err)
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %v", models.ErrConflict, err)
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: %v", models.ErrNotFound, err)
	case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	return err
}

// escapeLike makes % and _ literal inside a LIKE pattern using '\' as escape.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func containsPattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

type rowScanner interface {
	Scan(dest ...any) error
}

const tournamentColumns = `tournament_id, name, type, categories, date_from, date_to, courts, password, created_at`

func scanTournament(row rowScanner) (*models.Tournament, error) {
	var (
		t        models.Tournament
		tType    string
		dateFrom string
		dateTo   string
		courts   sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Name, &tType, &t.Categories, &dateFrom, &dateTo, &courts, &t.Password, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Type = models.TournamentType(tType)

	var err error
	if t.DateFrom, err = civil.ParseDate(dateFrom); err != nil {
		return nil, fmt.Errorf("tournament %d date_from: %w", t.ID, err)
	}
	if t.DateTo, err = civil.ParseDate(dateTo); err != nil {
		return nil, fmt.Errorf("tournament %d date_to: %w", t.ID, err)
	}
	if courts.Valid {
		n := int(courts.Int64)
		t.Courts = &n
	}
	return &t, nil
}

func courtsValue(courts *int) any {
	if courts == nil {
		return nil
	}
	return int64(*courts)
}

func (s *SQLiteStore) insertTournament(ctx context.Context, t *models.Tournament, withID bool) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	columns := `name, type, categories, date_from, date_to, courts, password, created_at`
	args := []any{t.Name, string(t.Type), t.Categories, t.DateFrom.String(), t.DateTo.String(), courtsValue(t.Courts), t.Password, t.CreatedAt}
	if withID {
		columns = "tournament_id, " + columns
		args = append([]any{t.ID}, args...)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	res, err := s.db.ExecContext(ctx, `INSERT INTO Tournaments (`+columns+`) VALUES (`+placeholders+`)`, args...)
	if err != nil {
		err = classifySQLiteError(err)
		if errors.Is(err, models.ErrConflict) {
			return fmt.Errorf("tournament %q %w", t.Name, models.ErrConflict)
		}
		return err
	}
	if !withID {
		if t.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreateTournament(ctx context.Context, t *models.Tournament) error {
	return s.insertTournament(ctx, t, false)
}

func (s *SQLiteStore) ImportTournament(ctx context.Context, t *models.Tournament) error {
	return s.insertTournament(ctx, t, true)
}

func (s *SQLiteStore) GetTournament(ctx context.Context, id int64) (*models.Tournament, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tournamentColumns+` FROM Tournaments WHERE tournament_id = ?`, id)
	t, err := scanTournament(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tournament %d %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	return t, nil
}

func (s *SQLiteStore) ListTournaments(ctx context.Context, f models.TournamentFilter) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM Tournaments WHERE name LIKE ? ESCAPE '\'`
	args := []any{containsPattern(f.Search)}

	today := f.Today.String()
	switch f.Status {
	case models.StatusOngoing:
		query += ` AND date_from <= ? AND date_to >= ? ORDER BY tournament_id`
		args = append(args, today, today)
	case models.StatusRecent:
		query += ` AND date_to < ? ORDER BY date_to DESC, tournament_id LIMIT ?`
		args = append(args, today, models.RecentLimit)
	default:
		query += ` ORDER BY tournament_id`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, classifySQLiteError(rows.Err())
}

func (s *SQLiteStore) ListParticipants(ctx context.Context, tournamentID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.first_name, p.last_name FROM Players p
		JOIN Players_In_Tournaments r ON p.player_id = r.player_id
		WHERE r.tournament_id = ?
		ORDER BY r.registration_id`, tournamentID)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.FirstName, &p.LastName); err != nil {
			return nil, err
		}
		names = append(names, p.DisplayName())
	}
	return names, classifySQLiteError(rows.Err())
}

const playerColumns = `player_id, first_name, last_name, club, created_at`

func scanPlayer(row rowScanner) (*models.Player, error) {
	var p models.Player
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Club, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO Players (first_name, last_name, club, created_at) VALUES (?, ?, ?, ?)`,
		p.FirstName, p.LastName, p.Club, p.CreatedAt)
	if err != nil {
		return classifySQLiteError(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) ImportPlayer(ctx context.Context, p *models.Player) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO Players (player_id, first_name, last_name, club, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.FirstName, p.LastName, p.Club, p.CreatedAt)
	if err = classifySQLiteError(err); errors.Is(err, models.ErrConflict) {
		return fmt.Errorf("player %d %w", p.ID, models.ErrConflict)
	}
	return err
}

func (s *SQLiteStore) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM Players WHERE player_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %d %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	return p, nil
}

func (s *SQLiteStore) queryPlayers(ctx context.Context, query string, args ...any) ([]*models.Player, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, classifySQLiteError(rows.Err())
}

func (s *SQLiteStore) ListPlayers(ctx context.Context) ([]*models.Player, error) {
	return s.queryPlayers(ctx, `SELECT `+playerColumns+` FROM Players ORDER BY player_id`)
}

func (s *SQLiteStore) SearchPlayers(ctx context.Context, query string) ([]*models.Player, error) {
	pattern := containsPattern(query)
	return s.queryPlayers(ctx, `
		SELECT `+playerColumns+` FROM Players
		WHERE first_name LIKE ? ESCAPE '\'
		   OR last_name LIKE ? ESCAPE '\'
		   OR trim(first_name || ' ' || last_name) LIKE ? ESCAPE '\'
		ORDER BY player_id`, pattern, pattern, pattern)
}

func exists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var found bool
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, classifySQLiteError(err)
	}
	return found, nil
}

// checkRegistration verifies references and the (player, tournament) pair
// inside tx so the error names the missing row. The schema constraints
// remain the final word under concurrent writers.
func checkRegistration(ctx context.Context, tx *sql.Tx, r *models.Registration) error {
	type reference struct {
		query string
		id    int64
		what  string
	}
	const (
		tournamentExists = `SELECT count(*) > 0 FROM Tournaments WHERE tournament_id = ?`
		playerExists     = `SELECT count(*) > 0 FROM Players WHERE player_id = ?`
	)
	checks := []reference{
		{tournamentExists, r.TournamentID, "tournament"},
		{playerExists, r.PlayerID, "player"},
	}
	if r.PartnerID != nil {
		if *r.PartnerID == r.PlayerID {
			return models.Invalid("partner_id", "must differ from player_id")
		}
		checks = append(checks, reference{playerExists, *r.PartnerID, "partner"})
	}
	for _, c := range checks {
		found, err := exists(ctx, tx, c.query, c.id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s %d %w", c.what, c.id, models.ErrNotFound)
		}
	}

	registered, err := exists(ctx, tx,
		`SELECT count(*) > 0 FROM Players_In_Tournaments WHERE player_id = ? AND tournament_id = ?`,
		r.PlayerID, r.TournamentID)
	if err != nil {
		return err
	}
	if registered {
		return fmt.Errorf("player %d in tournament %d %w", r.PlayerID, r.TournamentID, models.ErrConflict)
	}
	return nil
}

func partnerValue(partnerID *int64) any {
	if partnerID == nil {
		return nil
	}
	return *partnerID
}

func (s *SQLiteStore) insertRegistration(ctx context.Context, r *models.Registration, withID bool) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if err := checkRegistration(ctx, tx, r); err != nil {
			return err
		}

		columns := `player_id, tournament_id, partner_id, created_at`
		args := []any{r.PlayerID, r.TournamentID, partnerValue(r.PartnerID), r.CreatedAt}
		if withID {
			columns = "registration_id, " + columns
			args = append([]any{r.ID}, args...)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

		res, err := tx.ExecContext(ctx, `INSERT INTO Players_In_Tournaments (`+columns+`) VALUES (`+placeholders+`)`, args...)
		if err != nil {
			err = classifySQLiteError(err)
			if errors.Is(err, models.ErrConflict) {
				return fmt.Errorf("player %d in tournament %d %w", r.PlayerID, r.TournamentID, models.ErrConflict)
			}
			return err
		}
		if !withID {
			r.ID, err = res.LastInsertId()
		}
		return err
	})
}

func (s *SQLiteStore) CreateRegistration(ctx context.Context, r *models.Registration) error {
	return s.insertRegistration(ctx, r, false)
}

func (s *SQLiteStore) ImportRegistration(ctx context.Context, r *models.Registration) error {
	return s.insertRegistration(ctx, r, true)
}

func (s *SQLiteStore) ListRegistrations(ctx context.Context, tournamentID int64) ([]*models.RegistrationEntry, error) {
	if _, err := s.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.registration_id, r.tournament_id, r.player_id, r.partner_id, r.created_at,
		       p.first_name, p.last_name,
		       COALESCE(q.first_name, ''), COALESCE(q.last_name, '')
		FROM Players_In_Tournaments r
		JOIN Players p ON p.player_id = r.player_id
		LEFT JOIN Players q ON q.player_id = r.partner_id
		WHERE r.tournament_id = ?
		ORDER BY r.registration_id`, tournamentID)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	entries := make([]*models.RegistrationEntry, 0)
	for rows.Next() {
		var (
			e       models.RegistrationEntry
			partner sql.NullInt64
			player  models.Player
			mate    models.Player
		)
		if err := rows.Scan(&e.ID, &e.TournamentID, &e.PlayerID, &partner, &e.CreatedAt,
			&player.FirstName, &player.LastName, &mate.FirstName, &mate.LastName); err != nil {
			return nil, err
		}
		if partner.Valid {
			id := partner.Int64
			e.PartnerID = &id
			e.PartnerName = mate.DisplayName()
		}
		e.PlayerName = player.DisplayName()
		entries = append(entries, &e)
	}
	return entries, classifySQLiteError(rows.Err())
}
