package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
	"tourney-backend/internal/models"
)

// newFirestore connects to the emulator under a fresh project so every test
// starts empty.
func newFirestore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	project := fmt.Sprintf("test-%d", time.Now().UnixNano())
	s, err := NewFirestoreStore(context.Background(), project, "")
	if err != nil {
		t.Fatalf("open firestore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFirestoreStore(t *testing.T) {
	ctx := context.Background()
	s := newFirestore(t)

	tour := addTournament(t, s, "Cloud Open", "2024-01-04", "2024-01-06")
	addTournament(t, s, "Old Cup", "2023-12-01", "2023-12-02")
	dup := &models.Tournament{Name: "Cloud Open", Type: models.TypeSingles,
		DateFrom: tour.DateFrom, DateTo: tour.DateTo, Password: "x"}
	if err := s.CreateTournament(ctx, dup); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	ongoing, err := s.ListTournaments(ctx, models.TournamentFilter{Status: models.StatusOngoing, Today: today})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !equalStrings(names(ongoing), []string{"Cloud Open"}) {
		t.Fatalf("unexpected ongoing %v", names(ongoing))
	}

	a := addPlayer(t, s, "Ann", "")
	b := addPlayer(t, s, "Bob", "Baker")
	if b.ID != a.ID+1 {
		t.Fatalf("expected sequential player ids, got %d and %d", a.ID, b.ID)
	}
	if err := s.CreateRegistration(ctx, &models.Registration{TournamentID: tour.ID, PlayerID: a.ID, PartnerID: &b.ID}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.CreateRegistration(ctx, &models.Registration{TournamentID: tour.ID, PlayerID: a.ID}); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := s.CreateRegistration(ctx, &models.Registration{TournamentID: tour.ID, PlayerID: 999}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entries, err := s.ListRegistrations(ctx, tour.ID)
	if err != nil {
		t.Fatalf("list registrations: %v", err)
	}
	if len(entries) != 1 || entries[0].PlayerName != "Ann" || entries[0].PartnerName != "Bob Baker" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestCopyIntoFirestore(t *testing.T) {
	ctx := context.Background()
	dst := newFirestore(t)
	src := NewMemoryStore()
	p := addPlayer(t, src, "Ann", "")
	tour := addTournament(t, src, "Migrated", "2024-01-01", "2024-01-01")
	if err := src.CreateRegistration(ctx, &models.Registration{TournamentID: tour.ID, PlayerID: p.ID}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := Copy(ctx, src, dst); err != nil {
		t.Fatalf("copy: %v", err)
	}
	again, err := Copy(ctx, src, dst)
	if err != nil {
		t.Fatalf("second copy: %v", err)
	}
	if again.Skipped != 3 {
		t.Fatalf("expected 3 skipped on rerun, got %+v", again)
	}
}
