package service

import (
	"context"
	"strings"
	"tourney-backend/internal/models"
)

// CreatePlayer stores a player and returns its id. The split form is used
// when either first or last name is given, and then both are required.
// Otherwise Name is required and becomes the first name.
func (s *Service) CreatePlayer(ctx context.Context, in models.NewPlayer) (int64, error) {
	v := &models.ValidationError{}
	p := &models.Player{Club: strings.TrimSpace(in.Club)}

	if strings.TrimSpace(in.FirstName) != "" || strings.TrimSpace(in.LastName) != "" {
		p.FirstName = requireName(v, "first_name", in.FirstName)
		p.LastName = requireName(v, "last_name", in.LastName)
	} else {
		p.FirstName = requireName(v, "name", in.Name)
	}
	if err := v.Err(); err != nil {
		return 0, err
	}
	p.CreatedAt = s.timestamp()

	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.CreatePlayer(ctx, p); err != nil {
		return 0, storeErr(err)
	}
	return p.ID, nil
}

func (s *Service) ListPlayers(ctx context.Context) ([]*models.Player, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	players, err := s.store.ListPlayers(ctx)
	return players, storeErr(err)
}

// SearchPlayers matches query against first, last and display names. A
// blank query matches nothing.
func (s *Service) SearchPlayers(ctx context.Context, query string) ([]*models.Player, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*models.Player{}, nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	players, err := s.store.SearchPlayers(ctx, query)
	return players, storeErr(err)
}
