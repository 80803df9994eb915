package store

import (
	"context"
	"fmt"
	"sync"
	"time"
	"tourney-backend/internal/models"
)

type MemoryStore struct {
	mu            sync.RWMutex
	tournaments   map[int64]*models.Tournament
	names         map[string]int64
	players       map[int64]*models.Player
	registrations map[int64]*models.Registration
	keys          map[models.RegistrationKey]int64

	lastTournament   int64
	lastPlayer       int64
	lastRegistration int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tournaments:   make(map[int64]*models.Tournament),
		names:         make(map[string]int64),
		players:       make(map[int64]*models.Player),
		registrations: make(map[int64]*models.Registration),
		keys:          make(map[models.RegistrationKey]int64),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateTournament(_ context.Context, t *models.Tournament) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.names[t.Name]; exists {
		return fmt.Errorf("tournament %q %w", t.Name, models.ErrConflict)
	}

	m.lastTournament++
	t.ID = m.lastTournament
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	// Copy to avoid external mutation
	copied := *t
	m.tournaments[t.ID] = &copied
	m.names[t.Name] = t.ID
	return nil
}

func (m *MemoryStore) GetTournament(_ context.Context, id int64) (*models.Tournament, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tournaments[id]
	if !ok {
		return nil, fmt.Errorf("tournament %d %w", id, models.ErrNotFound)
	}

	copied := *t
	return &copied, nil
}

func (m *MemoryStore) ListTournaments(_ context.Context, f models.TournamentFilter) ([]*models.Tournament, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*models.Tournament, 0, len(m.tournaments))
	for _, t := range m.tournaments {
		copied := *t
		all = append(all, &copied)
	}
	return applyTournamentFilter(all, f), nil
}

func (m *MemoryStore) ListParticipants(ctx context.Context, tournamentID int64) ([]string, error) {
	entries, err := m.ListRegistrations(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.PlayerName)
	}
	return names, nil
}

func (m *MemoryStore) CreatePlayer(_ context.Context, p *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastPlayer++
	p.ID = m.lastPlayer
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	copied := *p
	m.players[p.ID] = &copied
	return nil
}

func (m *MemoryStore) GetPlayer(_ context.Context, id int64) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.players[id]
	if !ok {
		return nil, fmt.Errorf("player %d %w", id, models.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (m *MemoryStore) ListPlayers(_ context.Context) ([]*models.Player, error) {
	return m.findPlayers(func(*models.Player) bool { return true }), nil
}

func (m *MemoryStore) SearchPlayers(_ context.Context, query string) ([]*models.Player, error) {
	return m.findPlayers(func(p *models.Player) bool { return p.MatchesQuery(query) }), nil
}

func (m *MemoryStore) findPlayers(match func(*models.Player) bool) []*models.Player {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Player, 0, len(m.players))
	for _, p := range m.players {
		if !match(p) {
			continue
		}
		copied := *p
		result = append(result, &copied)
	}
	sortPlayers(result)
	return result
}

func (m *MemoryStore) CreateRegistration(_ context.Context, r *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRegistration(r); err != nil {
		return err
	}

	m.lastRegistration++
	r.ID = m.lastRegistration
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.putRegistration(r)
	return nil
}

// checkRegistration applies the reference and uniqueness rules. Callers hold m.mu.
func (m *MemoryStore) checkRegistration(r *models.Registration) error {
	if _, ok := m.tournaments[r.TournamentID]; !ok {
		return fmt.Errorf("tournament %d %w", r.TournamentID, models.ErrNotFound)
	}
	if _, ok := m.players[r.PlayerID]; !ok {
		return fmt.Errorf("player %d %w", r.PlayerID, models.ErrNotFound)
	}
	if r.PartnerID != nil {
		if *r.PartnerID == r.PlayerID {
			return models.Invalid("partner_id", "must differ from player_id")
		}
		if _, ok := m.players[*r.PartnerID]; !ok {
			return fmt.Errorf("partner %d %w", *r.PartnerID, models.ErrNotFound)
		}
	}
	if _, exists := m.keys[r.Key()]; exists {
		return fmt.Errorf("player %d in tournament %d %w", r.PlayerID, r.TournamentID, models.ErrConflict)
	}
	return nil
}

func (m *MemoryStore) putRegistration(r *models.Registration) {
	copied := *r
	if r.PartnerID != nil {
		partner := *r.PartnerID
		copied.PartnerID = &partner
	}
	m.registrations[r.ID] = &copied
	m.keys[r.Key()] = r.ID
}

func (m *MemoryStore) ListRegistrations(_ context.Context, tournamentID int64) ([]*models.RegistrationEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tournaments[tournamentID]; !ok {
		return nil, fmt.Errorf("tournament %d %w", tournamentID, models.ErrNotFound)
	}

	entries := make([]*models.RegistrationEntry, 0)
	for _, r := range m.registrations {
		if r.TournamentID != tournamentID {
			continue
		}
		e := &models.RegistrationEntry{Registration: *r}
		if p, ok := m.players[r.PlayerID]; ok {
			e.PlayerName = p.DisplayName()
		}
		if r.PartnerID != nil {
			if p, ok := m.players[*r.PartnerID]; ok {
				e.PartnerName = p.DisplayName()
			}
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries, nil
}

func (m *MemoryStore) ImportTournament(_ context.Context, t *models.Tournament) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tournaments[t.ID]; exists {
		return fmt.Errorf("tournament %d %w", t.ID, models.ErrConflict)
	}
	if _, exists := m.names[t.Name]; exists {
		return fmt.Errorf("tournament %q %w", t.Name, models.ErrConflict)
	}
	copied := *t
	m.tournaments[t.ID] = &copied
	m.names[t.Name] = t.ID
	m.lastTournament = max(m.lastTournament, t.ID)
	return nil
}

func (m *MemoryStore) ImportPlayer(_ context.Context, p *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[p.ID]; exists {
		return fmt.Errorf("player %d %w", p.ID, models.ErrConflict)
	}
	copied := *p
	m.players[p.ID] = &copied
	m.lastPlayer = max(m.lastPlayer, p.ID)
	return nil
}

func (m *MemoryStore) ImportRegistration(_ context.Context, r *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.registrations[r.ID]; exists {
		return fmt.Errorf("registration %d %w", r.ID, models.ErrConflict)
	}
	if err := m.checkRegistration(r); err != nil {
		return err
	}
	m.putRegistration(r)
	m.lastRegistration = max(m.lastRegistration, r.ID)
	return nil
}

// memorySnapshot is the serialized form used by FileStore.
type memorySnapshot struct {
	Tournaments   []*models.Tournament   `json:"tournaments"`
	Players       []*models.Player       `json:"players"`
	Registrations []*models.Registration `json:"registrations"`
	Passwords     map[int64]string       `json:"passwords"`
}

func (m *MemoryStore) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := memorySnapshot{
		Tournaments:   make([]*models.Tournament, 0, len(m.tournaments)),
		Players:       make([]*models.Player, 0, len(m.players)),
		Registrations: make([]*models.Registration, 0, len(m.registrations)),
		Passwords:     make(map[int64]string, len(m.tournaments)),
	}
	for _, t := range m.tournaments {
		s.Tournaments = append(s.Tournaments, t)
		s.Passwords[t.ID] = t.Password
	}
	for _, p := range m.players {
		s.Players = append(s.Players, p)
	}
	for _, r := range m.registrations {
		s.Registrations = append(s.Registrations, r)
	}
	return s
}

func (m *MemoryStore) restore(ctx context.Context, s memorySnapshot) error {
	for _, t := range s.Tournaments {
		copied := *t
		copied.Password = s.Passwords[t.ID]
		if err := m.ImportTournament(ctx, &copied); err != nil {
			return err
		}
	}
	for _, p := range s.Players {
		copied := *p
		if err := m.ImportPlayer(ctx, &copied); err != nil {
			return err
		}
	}
	for _, r := range s.Registrations {
		copied := *r
		if err := m.ImportRegistration(ctx, &copied); err != nil {
			return err
		}
	}
	return nil
}

// reset replaces the contents of m with s. Id counters restart from the
// highest id in s.
func (m *MemoryStore) reset(ctx context.Context, s memorySnapshot) error {
	fresh := NewMemoryStore()
	if err := fresh.restore(ctx, s); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tournaments, m.names = fresh.tournaments, fresh.names
	m.players = fresh.players
	m.registrations, m.keys = fresh.registrations, fresh.keys
	m.lastTournament = fresh.lastTournament
	m.lastPlayer = fresh.lastPlayer
	m.lastRegistration = fresh.lastRegistration
	return nil
}
