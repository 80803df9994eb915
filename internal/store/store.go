package store

import (
	"context"
	"tourney-backend/internal/models"
)

// Store defines the interface for tournament, player and registration persistence.
// Implementations back this with SQLite, in-memory maps, a JSON file, or Firestore.
//
// Stores enforce the uniqueness and reference rules themselves: a duplicate
// tournament name or (player, tournament) pair yields models.ErrConflict and a
// dangling tournament, player or partner reference yields models.ErrNotFound,
// even when the caller already checked.
type Store interface {
	// Tournaments
	CreateTournament(ctx context.Context, t *models.Tournament) error
	GetTournament(ctx context.Context, id int64) (*models.Tournament, error)
	ListTournaments(ctx context.Context, f models.TournamentFilter) ([]*models.Tournament, error)
	ListParticipants(ctx context.Context, tournamentID int64) ([]string, error)

	// Players
	CreatePlayer(ctx context.Context, p *models.Player) error
	GetPlayer(ctx context.Context, id int64) (*models.Player, error)
	ListPlayers(ctx context.Context) ([]*models.Player, error)
	SearchPlayers(ctx context.Context, query string) ([]*models.Player, error)

	// Registrations
	CreateRegistration(ctx context.Context, r *models.Registration) error
	ListRegistrations(ctx context.Context, tournamentID int64) ([]*models.RegistrationEntry, error)

	Close() error
}

// Importer writes entities with their existing ids and timestamps. It is
// used when copying data between backends.
type Importer interface {
	ImportTournament(ctx context.Context, t *models.Tournament) error
	ImportPlayer(ctx context.Context, p *models.Player) error
	ImportRegistration(ctx context.Context, r *models.Registration) error
}

// Versioned is implemented by stores with a migrated schema.
type Versioned interface {
	SchemaVersion(ctx context.Context) (string, error)
}
