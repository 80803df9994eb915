package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
	"tourney-backend/internal/models"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	tournamentsCollection   = "tournaments"
	tournamentNamesCol      = "tournament_names"
	playersCollection       = "players"
	registrationsCollection = "registrations"
	countersCollection      = "counters"
)

// FirestoreStore implements Store on Cloud Firestore.
//
// Integer ids come from counter documents updated in the same transaction as
// the insert. Tournament names are reserved by a document keyed on the
// encoded name, and registrations are keyed "{tournament}_{player}", so both
// uniqueness rules hold under concurrent writers.
type FirestoreStore struct {
	client *firestore.Client
}

type tournamentDoc struct {
	ID         int64     `firestore:"id"`
	Name       string    `firestore:"name"`
	Type       string    `firestore:"type"`
	Categories string    `firestore:"categories"`
	DateFrom   string    `firestore:"date_from"`
	DateTo     string    `firestore:"date_to"`
	Courts     *int64    `firestore:"courts"`
	Password   string    `firestore:"password"`
	CreatedAt  time.Time `firestore:"created_at"`
}

type playerDoc struct {
	ID        int64     `firestore:"id"`
	FirstName string    `firestore:"first_name"`
	LastName  string    `firestore:"last_name"`
	Club      string    `firestore:"club"`
	CreatedAt time.Time `firestore:"created_at"`
}

type registrationDoc struct {
	ID           int64     `firestore:"id"`
	TournamentID int64     `firestore:"tournament_id"`
	PlayerID     int64     `firestore:"player_id"`
	PartnerID    *int64    `firestore:"partner_id"`
	CreatedAt    time.Time `firestore:"created_at"`
}

type counterDoc struct {
	Last int64 `firestore:"last"`
}

// NewFirestoreStore connects to databaseID in projectID; an empty databaseID
// selects the default database. FIRESTORE_EMULATOR_HOST is honoured by the
// client library.
func NewFirestoreStore(ctx context.Context, projectID, databaseID string, opts ...option.ClientOption) (*FirestoreStore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func nameKey(name string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

func registrationKey(tournamentID, playerID int64) string {
	return idKey(tournamentID) + "_" + idKey(playerID)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// classifyFirestoreError maps gRPC status codes onto the model error kinds.
// Errors that already carry a kind pass through unchanged.
func classifyFirestoreError(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{models.ErrValidation, models.ErrConflict, models.ErrNotFound, models.ErrTimeout, models.ErrUnavailable} {
		if errors.Is(err, kind) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrTimeout, err)
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", models.ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", models.ErrConflict, err)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", models.ErrTimeout, err)
	case codes.Unavailable, codes.Aborted, codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	return err
}

func toTournamentDoc(t *models.Tournament) tournamentDoc {
	d := tournamentDoc{
		ID:         t.ID,
		Name:       t.Name,
		Type:       string(t.Type),
		Categories: t.Categories,
		DateFrom:   t.DateFrom.String(),
		DateTo:     t.DateTo.String(),
		Password:   t.Password,
		CreatedAt:  t.CreatedAt,
	}
	if t.Courts != nil {
		courts := int64(*t.Courts)
		d.Courts = &courts
	}
	return d
}

func (d tournamentDoc) model() (*models.Tournament, error) {
	t := &models.Tournament{
		ID:         d.ID,
		Name:       d.Name,
		Type:       models.TournamentType(d.Type),
		Categories: d.Categories,
		Password:   d.Password,
		CreatedAt:  d.CreatedAt,
	}
	var err error
	if t.DateFrom, err = civil.ParseDate(d.DateFrom); err != nil {
		return nil, fmt.Errorf("tournament %d date_from: %w", d.ID, err)
	}
	if t.DateTo, err = civil.ParseDate(d.DateTo); err != nil {
		return nil, fmt.Errorf("tournament %d date_to: %w", d.ID, err)
	}
	if d.Courts != nil {
		courts := int(*d.Courts)
		t.Courts = &courts
	}
	return t, nil
}

func (d playerDoc) model() *models.Player {
	return &models.Player{ID: d.ID, FirstName: d.FirstName, LastName: d.LastName, Club: d.Club, CreatedAt: d.CreatedAt}
}

// lastID reads a counter inside tx, 0 when absent. The caller writes the
// new value back with tx.Set after all of its reads.
func lastID(tx *firestore.Transaction, ref *firestore.DocumentRef) (int64, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	var c counterDoc
	if err := snap.DataTo(&c); err != nil {
		return 0, err
	}
	return c.Last, nil
}

func docExists(tx *firestore.Transaction, ref *firestore.DocumentRef) (bool, error) {
	_, err := tx.Get(ref)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *FirestoreStore) putTournament(ctx context.Context, t *models.Tournament, withID bool) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	counterRef := s.client.Collection(countersCollection).Doc(tournamentsCollection)
	nameRef := s.client.Collection(tournamentNamesCol).Doc(nameKey(t.Name))

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		taken, err := docExists(tx, nameRef)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("tournament %q %w", t.Name, models.ErrConflict)
		}

		last, err := lastID(tx, counterRef)
		if err != nil {
			return err
		}
		id := last + 1
		if withID {
			id = t.ID
			exists, err := docExists(tx, s.client.Collection(tournamentsCollection).Doc(idKey(id)))
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("tournament %d %w", id, models.ErrConflict)
			}
		}

		doc := toTournamentDoc(t)
		doc.ID = id
		if err := tx.Set(counterRef, counterDoc{Last: max(last, id)}); err != nil {
			return err
		}
		if err := tx.Create(nameRef, map[string]any{"tournament_id": id}); err != nil {
			return err
		}
		if err := tx.Create(s.client.Collection(tournamentsCollection).Doc(idKey(id)), doc); err != nil {
			return err
		}
		t.ID = id
		return nil
	})
	if err = classifyFirestoreError(err); errors.Is(err, models.ErrConflict) && !withID {
		return fmt.Errorf("tournament %q %w", t.Name, models.ErrConflict)
	}
	return err
}

func (s *FirestoreStore) CreateTournament(ctx context.Context, t *models.Tournament) error {
	return s.putTournament(ctx, t, false)
}

func (s *FirestoreStore) ImportTournament(ctx context.Context, t *models.Tournament) error {
	return s.putTournament(ctx, t, true)
}

func (s *FirestoreStore) GetTournament(ctx context.Context, id int64) (*models.Tournament, error) {
	snap, err := s.client.Collection(tournamentsCollection).Doc(idKey(id)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("tournament %d %w", id, models.ErrNotFound)
		}
		return nil, classifyFirestoreError(err)
	}
	var d tournamentDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return d.model()
}

// ListTournaments narrows by date_to in the query and leaves name search,
// the remaining date bound and ordering to applyTournamentFilter.
func (s *FirestoreStore) ListTournaments(ctx context.Context, f models.TournamentFilter) ([]*models.Tournament, error) {
	q := s.client.Collection(tournamentsCollection).Query
	switch f.Status {
	case models.StatusOngoing:
		q = q.Where("date_to", ">=", f.Today.String())
	case models.StatusRecent:
		q = q.Where("date_to", "<", f.Today.String())
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	all := make([]*models.Tournament, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classifyFirestoreError(err)
		}
		var d tournamentDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		t, err := d.model()
		if err != nil {
			return nil, err
		}
		all = append(all, t)
	}
	return applyTournamentFilter(all, f), nil
}

func (s *FirestoreStore) ListParticipants(ctx context.Context, tournamentID int64) ([]string, error) {
	entries, err := s.ListRegistrations(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.PlayerName)
	}
	return names, nil
}

func (s *FirestoreStore) putPlayer(ctx context.Context, p *models.Player, withID bool) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	counterRef := s.client.Collection(countersCollection).Doc(playersCollection)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		last, err := lastID(tx, counterRef)
		if err != nil {
			return err
		}
		id := last + 1
		if withID {
			id = p.ID
		}
		ref := s.client.Collection(playersCollection).Doc(idKey(id))
		exists, err := docExists(tx, ref)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("player %d %w", id, models.ErrConflict)
		}

		if err := tx.Set(counterRef, counterDoc{Last: max(last, id)}); err != nil {
			return err
		}
		doc := playerDoc{ID: id, FirstName: p.FirstName, LastName: p.LastName, Club: p.Club, CreatedAt: p.CreatedAt}
		if err := tx.Create(ref, doc); err != nil {
			return err
		}
		p.ID = id
		return nil
	})
	return classifyFirestoreError(err)
}

func (s *FirestoreStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	return s.putPlayer(ctx, p, false)
}

func (s *FirestoreStore) ImportPlayer(ctx context.Context, p *models.Player) error {
	return s.putPlayer(ctx, p, true)
}

func (s *FirestoreStore) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	snap, err := s.client.Collection(playersCollection).Doc(idKey(id)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("player %d %w", id, models.ErrNotFound)
		}
		return nil, classifyFirestoreError(err)
	}
	var d playerDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return d.model(), nil
}

func (s *FirestoreStore) findPlayers(ctx context.Context, match func(*models.Player) bool) ([]*models.Player, error) {
	iter := s.client.Collection(playersCollection).OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	players := make([]*models.Player, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classifyFirestoreError(err)
		}
		var d playerDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		if p := d.model(); match(p) {
			players = append(players, p)
		}
	}
	return players, nil
}

func (s *FirestoreStore) ListPlayers(ctx context.Context) ([]*models.Player, error) {
	return s.findPlayers(ctx, func(*models.Player) bool { return true })
}

func (s *FirestoreStore) SearchPlayers(ctx context.Context, query string) ([]*models.Player, error) {
	return s.findPlayers(ctx, func(p *models.Player) bool { return p.MatchesQuery(query) })
}

func (s *FirestoreStore) putRegistration(ctx context.Context, r *models.Registration, withID bool) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.PartnerID != nil && *r.PartnerID == r.PlayerID {
		return models.Invalid("partner_id", "must differ from player_id")
	}
	counterRef := s.client.Collection(countersCollection).Doc(registrationsCollection)
	ref := s.client.Collection(registrationsCollection).Doc(registrationKey(r.TournamentID, r.PlayerID))

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		type reference struct {
			doc  *firestore.DocumentRef
			id   int64
			what string
		}
		players := s.client.Collection(playersCollection)
		refs := []reference{
			{s.client.Collection(tournamentsCollection).Doc(idKey(r.TournamentID)), r.TournamentID, "tournament"},
			{players.Doc(idKey(r.PlayerID)), r.PlayerID, "player"},
		}
		if r.PartnerID != nil {
			refs = append(refs, reference{players.Doc(idKey(*r.PartnerID)), *r.PartnerID, "partner"})
		}
		for _, c := range refs {
			found, err := docExists(tx, c.doc)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%s %d %w", c.what, c.id, models.ErrNotFound)
			}
		}

		registered, err := docExists(tx, ref)
		if err != nil {
			return err
		}
		if registered {
			return fmt.Errorf("player %d in tournament %d %w", r.PlayerID, r.TournamentID, models.ErrConflict)
		}

		last, err := lastID(tx, counterRef)
		if err != nil {
			return err
		}
		id := last + 1
		if withID {
			id = r.ID
		}
		if err := tx.Set(counterRef, counterDoc{Last: max(last, id)}); err != nil {
			return err
		}
		doc := registrationDoc{ID: id, TournamentID: r.TournamentID, PlayerID: r.PlayerID, PartnerID: r.PartnerID, CreatedAt: r.CreatedAt}
		if err := tx.Create(ref, doc); err != nil {
			return err
		}
		r.ID = id
		return nil
	})
	if err = classifyFirestoreError(err); errors.Is(err, models.ErrConflict) {
		return fmt.Errorf("player %d in tournament %d %w", r.PlayerID, r.TournamentID, models.ErrConflict)
	}
	return err
}

func (s *FirestoreStore) CreateRegistration(ctx context.Context, r *models.Registration) error {
	return s.putRegistration(ctx, r, false)
}

func (s *FirestoreStore) ImportRegistration(ctx context.Context, r *models.Registration) error {
	return s.putRegistration(ctx, r, true)
}

func (s *FirestoreStore) ListRegistrations(ctx context.Context, tournamentID int64) ([]*models.RegistrationEntry, error) {
	if _, err := s.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}

	iter := s.client.Collection(registrationsCollection).Where("tournament_id", "==", tournamentID).Documents(ctx)
	defer iter.Stop()

	entries := make([]*models.RegistrationEntry, 0)
	playerIDs := make(map[int64]struct{})
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classifyFirestoreError(err)
		}
		var d registrationDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		entries = append(entries, &models.RegistrationEntry{Registration: models.Registration{
			ID:           d.ID,
			TournamentID: d.TournamentID,
			PlayerID:     d.PlayerID,
			PartnerID:    d.PartnerID,
			CreatedAt:    d.CreatedAt,
		}})
		playerIDs[d.PlayerID] = struct{}{}
		if d.PartnerID != nil {
			playerIDs[*d.PartnerID] = struct{}{}
		}
	}
	if len(entries) == 0 {
		return entries, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(playerIDs))
	for id := range playerIDs {
		refs = append(refs, s.client.Collection(playersCollection).Doc(idKey(id)))
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, classifyFirestoreError(err)
	}
	names := make(map[int64]string, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var d playerDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		names[d.ID] = d.model().DisplayName()
	}

	for _, e := range entries {
		e.PlayerName = names[e.PlayerID]
		if e.PartnerID != nil {
			e.PartnerName = names[*e.PartnerID]
		}
	}
	sortEntries(entries)
	return entries, nil
}
