package service

import (
	"context"
	"fmt"
	"strings"
	"tourney-backend/internal/models"

	"cloud.google.com/go/civil"
)

func parseDate(v *models.ValidationError, field, value string) (civil.Date, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		v.Add(field, "is required")
		return civil.Date{}, false
	}
	d, err := civil.ParseDate(value)
	if err != nil {
		v.Add(field, "must be a date formatted YYYY-MM-DD")
		return civil.Date{}, false
	}
	return d, true
}

func (s *Service) validateTournament(in models.NewTournament) (*models.Tournament, error) {
	v := &models.ValidationError{}
	t := &models.Tournament{
		Name:       requireName(v, "name", in.Name),
		Type:       models.TournamentType(strings.TrimSpace(in.Type)),
		Categories: strings.TrimSpace(in.Categories),
	}

	switch {
	case t.Type == "":
		v.Add("type", "is required")
	case !t.Type.Valid():
		v.Add("type", "must be Singles or Doubles")
	}

	from, okFrom := parseDate(v, "date_from", in.DateFrom)
	to, okTo := parseDate(v, "date_to", in.DateTo)
	if okFrom && okTo && from.After(to) {
		v.Add("date_to", "must not be before date_from")
	}
	t.DateFrom, t.DateTo = from, to

	if in.Courts != nil {
		if *in.Courts <= 0 {
			v.Add("courts", "must be a positive number")
		} else {
			courts := int(*in.Courts)
			t.Courts = &courts
		}
	}

	if strings.TrimSpace(in.Password) == "" {
		v.Add("password", "is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTournament validates in, stores the tournament and returns its id.
func (s *Service) CreateTournament(ctx context.Context, in models.NewTournament) (int64, error) {
	t, err := s.validateTournament(in)
	if err != nil {
		return 0, err
	}
	if t.Password, err = s.hasher.Hash(in.Password); err != nil {
		return 0, err
	}
	t.CreatedAt = s.timestamp()

	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.CreateTournament(ctx, t); err != nil {
		return 0, storeErr(err)
	}
	return t.ID, nil
}

// ListTournaments returns tournaments whose name contains search, narrowed
// by status ("ongoing", "recent"; anything else means no status filter).
func (s *Service) ListTournaments(ctx context.Context, search, status string) ([]*models.Tournament, error) {
	f := models.TournamentFilter{
		Search: search,
		Status: models.ParseTournamentStatus(status),
		Today:  s.today(),
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	tournaments, err := s.store.ListTournaments(ctx, f)
	return tournaments, storeErr(err)
}

func (s *Service) GetTournament(ctx context.Context, id int64) (*models.TournamentDetail, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	t, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	participants, err := s.store.ListParticipants(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return &models.TournamentDetail{Tournament: *t, Participants: participants}, nil
}

// AuthorizeManagement returns the tournament when password matches the
// stored one.
func (s *Service) AuthorizeManagement(ctx context.Context, id int64, password string) (*models.Tournament, error) {
	if password == "" {
		return nil, models.Invalid("password", "is required")
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	t, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if !s.hasher.Compare(t.Password, password) {
		return nil, fmt.Errorf("wrong password for tournament %d: %w", id, models.ErrForbidden)
	}
	return t, nil
}
