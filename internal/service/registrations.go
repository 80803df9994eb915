package service

import (
	"context"
	"tourney-backend/internal/models"
)

// RegisterPlayer enters playerID into tournamentID, optionally with a
// partner. The store rejects unknown references and repeat registrations.
func (s *Service) RegisterPlayer(ctx context.Context, tournamentID, playerID int64, partnerID *int64) (*models.Registration, error) {
	if partnerID != nil && *partnerID == playerID {
		return nil, models.Invalid("partner_id", "must differ from player_id")
	}

	r := &models.Registration{
		TournamentID: tournamentID,
		PlayerID:     playerID,
		PartnerID:    partnerID,
		CreatedAt:    s.timestamp(),
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.CreateRegistration(ctx, r); err != nil {
		return nil, storeErr(err)
	}
	return r, nil
}

func (s *Service) ListRegistrations(ctx context.Context, tournamentID int64) ([]*models.RegistrationEntry, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	entries, err := s.store.ListRegistrations(ctx, tournamentID)
	return entries, storeErr(err)
}
