package store

import (
	"context"
	"errors"
	"fmt"
	"tourney-backend/internal/models"

	"github.com/rs/zerolog"
)

// CopySummary counts what Copy wrote and what already existed at the
// destination.
type CopySummary struct {
	Tournaments, Players, Registrations int
	Skipped                             int
}

// Copy writes every player, tournament and registration from src into dst,
// preserving ids and timestamps. Entities that already exist in dst are
// skipped, so rerunning a copy is harmless.
//
// Passwords are copied in their stored form.
func Copy(ctx context.Context, src Store, dst Importer) (CopySummary, error) {
	var sum CopySummary
	logger := zerolog.Ctx(ctx)

	skip := func(err error, kind string, id int64) error {
		if errors.Is(err, models.ErrConflict) {
			logger.Info().Str("kind", kind).Int64("id", id).Msg("already present, skipping")
			sum.Skipped++
			return nil
		}
		return fmt.Errorf("copying %s %d: %w", kind, id, err)
	}

	players, err := src.ListPlayers(ctx)
	if err != nil {
		return sum, fmt.Errorf("listing players: %w", err)
	}
	for _, p := range players {
		if err := dst.ImportPlayer(ctx, p); err != nil {
			if err := skip(err, "player", p.ID); err != nil {
				return sum, err
			}
			continue
		}
		sum.Players++
	}

	tournaments, err := src.ListTournaments(ctx, models.TournamentFilter{})
	if err != nil {
		return sum, fmt.Errorf("listing tournaments: %w", err)
	}
	for _, t := range tournaments {
		if err := dst.ImportTournament(ctx, t); err != nil {
			if err := skip(err, "tournament", t.ID); err != nil {
				return sum, err
			}
		} else {
			sum.Tournaments++
		}

		entries, err := src.ListRegistrations(ctx, t.ID)
		if err != nil {
			return sum, fmt.Errorf("listing registrations for tournament %d: %w", t.ID, err)
		}
		for _, e := range entries {
			r := e.Registration
			if err := dst.ImportRegistration(ctx, &r); err != nil {
				if err := skip(err, "registration", r.ID); err != nil {
					return sum, err
				}
				continue
			}
			sum.Registrations++
		}
	}

	logger.Info().
		Int("tournaments", sum.Tournaments).
		Int("players", sum.Players).
		Int("registrations", sum.Registrations).
		Int("skipped", sum.Skipped).
		Msg("copy finished")
	return sum, nil
}
