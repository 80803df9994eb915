package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"tourney-backend/internal/models"
)

const snapshotFile = "registry.json"

// FileStore keeps the whole registry in memory and persists it as one JSON
// file at {dir}/registry.json after every write.
type FileStore struct {
	mu  sync.Mutex // serializes write+flush
	mem *MemoryStore
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	f := &FileStore{mem: NewMemoryStore(), dir: dir}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FileStore) path() string {
	return filepath.Join(f.dir, snapshotFile)
}

func (f *FileStore) load() error {
	data, err := os.ReadFile(f.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", f.path(), err)
	}

	var s memorySnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding %s: %w", f.path(), err)
	}
	if err := f.mem.restore(context.Background(), s); err != nil {
		return fmt.Errorf("restoring %s: %w", f.path(), err)
	}
	return nil
}

func (f *FileStore) flush() error {
	data, err := json.MarshalIndent(f.mem.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	// Write to temp file then rename for atomic writes
	tmp := f.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := os.Rename(tmp, f.path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming registry file: %w", err)
	}
	return nil
}

// write applies op and persists the result. A failed flush rolls the
// in-memory state back to what it was before op.
func (f *FileStore) write(op func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	before := f.mem.snapshot()
	if err := op(); err != nil {
		return err
	}
	if err := f.flush(); err != nil {
		if rerr := f.mem.reset(context.Background(), before); rerr != nil {
			return errors.Join(err, fmt.Errorf("rolling back registry: %w", rerr))
		}
		return err
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) CreateTournament(ctx context.Context, t *models.Tournament) error {
	return f.write(func() error { return f.mem.CreateTournament(ctx, t) })
}

func (f *FileStore) GetTournament(ctx context.Context, id int64) (*models.Tournament, error) {
	return f.mem.GetTournament(ctx, id)
}

func (f *FileStore) ListTournaments(ctx context.Context, filter models.TournamentFilter) ([]*models.Tournament, error) {
	return f.mem.ListTournaments(ctx, filter)
}

func (f *FileStore) ListParticipants(ctx context.Context, tournamentID int64) ([]string, error) {
	return f.mem.ListParticipants(ctx, tournamentID)
}

func (f *FileStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	return f.write(func() error { return f.mem.CreatePlayer(ctx, p) })
}

func (f *FileStore) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	return f.mem.GetPlayer(ctx, id)
}

func (f *FileStore) ListPlayers(ctx context.Context) ([]*models.Player, error) {
	return f.mem.ListPlayers(ctx)
}

func (f *FileStore) SearchPlayers(ctx context.Context, query string) ([]*models.Player, error) {
	return f.mem.SearchPlayers(ctx, query)
}

func (f *FileStore) CreateRegistration(ctx context.Context, r *models.Registration) error {
	return f.write(func() error { return f.mem.CreateRegistration(ctx, r) })
}

func (f *FileStore) ListRegistrations(ctx context.Context, tournamentID int64) ([]*models.RegistrationEntry, error) {
	return f.mem.ListRegistrations(ctx, tournamentID)
}

func (f *FileStore) ImportTournament(ctx context.Context, t *models.Tournament) error {
	return f.write(func() error { return f.mem.ImportTournament(ctx, t) })
}

func (f *FileStore) ImportPlayer(ctx context.Context, p *models.Player) error {
	return f.write(func() error { return f.mem.ImportPlayer(ctx, p) })
}

func (f *FileStore) ImportRegistration(ctx context.Context, r *models.Registration) error {
	return f.write(func() error { return f.mem.ImportRegistration(ctx, r) })
}
