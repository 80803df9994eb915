package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"tourney-backend/internal/auth"
	"tourney-backend/internal/models"
	"tourney-backend/internal/service"
	"tourney-backend/internal/store"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, requireToken bool) *testServer {
	t.Helper()
	now := func() time.Time { return time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC) }
	svc := service.New(store.NewMemoryStore(), auth.PlainHasher{}, service.WithClock(now))
	mux := http.NewServeMux()
	New(svc, auth.NewTokens("test-secret", time.Hour), requireToken).RegisterRoutes(mux)
	return &testServer{t: t, handler: mux}
}

func (s *testServer) do(method, target, contentType, body string, header ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(target string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		s.t.Fatalf("marshal: %v", err)
	}
	return s.do(http.MethodPost, target, "application/json", string(data))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func (s *testServer) createTournament(name, from, to string) int64 {
	s.t.Helper()
	rec := s.postJSON("/tournaments", map[string]any{
		"name": name, "type": "Singles", "date_from": from, "date_to": to, "password": "pw",
	})
	expectStatus(s.t, rec, http.StatusCreated)
	return decode[map[string]int64](s.t, rec)["id"]
}

func (s *testServer) createPlayer(name string) int64 {
	s.t.Helper()
	rec := s.postJSON("/players", map[string]string{"name": name})
	expectStatus(s.t, rec, http.StatusCreated)
	return decode[map[string]int64](s.t, rec)["id"]
}

func TestCreateTournament(t *testing.T) {
	s := newTestServer(t, false)

	id := s.createTournament("Winter Open", "2024-01-01", "2024-01-10")
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}

	rec := s.postJSON("/tournaments", map[string]any{
		"name": "Winter Open", "type": "Singles", "date_from": "2024-01-01", "date_to": "2024-01-02", "password": "pw",
	})
	expectStatus(t, rec, http.StatusConflict)

	rec = s.postJSON("/tournaments", map[string]any{"name": "No type", "date_from": "2024-01-01", "date_to": "2024-01-02", "password": "pw"})
	expectStatus(t, rec, http.StatusBadRequest)
	body := decode[errorBody](t, rec)
	if len(body.Fields) != 1 || body.Fields[0].Field != "type" {
		t.Fatalf("expected type field error, got %+v", body)
	}

	rec = s.do(http.MethodPost, "/tournaments", "application/json", "{not json")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestCreateTournamentForm(t *testing.T) {
	s := newTestServer(t, false)

	form := url.Values{
		"name": {"Form Cup"}, "type": {"Doubles"}, "date_from": {"2024-02-01"}, "date_to": {"2024-02-02"},
		"courts": {"3"}, "password": {"pw"},
	}
	rec := s.do(http.MethodPost, "/tournaments", "application/x-www-form-urlencoded", form.Encode())
	expectStatus(t, rec, http.StatusCreated)
	id := decode[map[string]int64](t, rec)["id"]

	rec = s.do(http.MethodGet, "/tournaments/1", "", "")
	expectStatus(t, rec, http.StatusOK)
	got := decode[map[string]any](t, rec)
	if got["name"] != "Form Cup" || got["courts"] != float64(3) || got["id"] != float64(id) {
		t.Fatalf("unexpected tournament %v", got)
	}
	if _, leaked := got["password"]; leaked {
		t.Fatalf("password must not be serialized: %v", got)
	}

	form.Set("name", "Other")
	form.Set("courts", "many")
	rec = s.do(http.MethodPost, "/tournaments", "application/x-www-form-urlencoded", form.Encode())
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestCreateTournamentBlankPassword(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.postJSON("/tournaments", map[string]any{
		"name": "Json Cup", "type": "Singles", "date_from": "2024-01-01", "date_to": "2024-01-02", "password": "   ",
	})
	expectStatus(t, rec, http.StatusBadRequest)
	body := decode[errorBody](t, rec)
	if len(body.Fields) != 1 || body.Fields[0].Field != "password" {
		t.Fatalf("expected password field error, got %+v", body)
	}

	form := url.Values{
		"name": {"Form Cup"}, "type": {"Singles"}, "date_from": {"2024-01-01"}, "date_to": {"2024-01-02"}, "password": {"   "},
	}
	rec = s.do(http.MethodPost, "/tournaments", "application/x-www-form-urlencoded", form.Encode())
	expectStatus(t, rec, http.StatusBadRequest)
	body = decode[errorBody](t, rec)
	if len(body.Fields) != 1 || body.Fields[0].Field != "password" {
		t.Fatalf("expected password field error, got %+v", body)
	}
}

func TestListTournaments(t *testing.T) {
	s := newTestServer(t, false)
	s.createTournament("A", "2024-01-01", "2024-01-10")
	s.createTournament("B", "2024-06-01", "2024-06-10")
	s.createTournament("Old", "2023-12-01", "2023-12-02")

	cases := []struct {
		query string
		want  []string
	}{
		{"", []string{"A", "B", "Old"}},
		{"?status=ongoing", []string{"A"}},
		{"?status=recent", []string{"Old"}},
		{"?status=bogus", []string{"A", "B", "Old"}},
		{"?search=ol", []string{"Old"}},
	}
	for _, c := range cases {
		rec := s.do(http.MethodGet, "/tournaments"+c.query, "", "")
		expectStatus(t, rec, http.StatusOK)
		body := decode[map[string][]models.Tournament](t, rec)
		got := make([]string, 0)
		for _, tour := range body["tournaments"] {
			got = append(got, tour.Name)
		}
		if strings.Join(got, ",") != strings.Join(c.want, ",") {
			t.Errorf("%q: got %v, want %v", c.query, got, c.want)
		}
	}
}

func TestGetTournament(t *testing.T) {
	s := newTestServer(t, false)
	tid := s.createTournament("A", "2024-01-01", "2024-01-10")
	pid := s.createPlayer("Axelsen")
	expectStatus(t, s.do(http.MethodPost, "/tournaments/1/players/1", "", ""), http.StatusCreated)

	rec := s.do(http.MethodGet, "/tournaments/1", "", "")
	expectStatus(t, rec, http.StatusOK)
	detail := decode[models.TournamentDetail](t, rec)
	if detail.ID != tid || len(detail.Participants) != 1 || detail.Participants[0] != "Axelsen" {
		t.Fatalf("unexpected detail %+v (player %d)", detail, pid)
	}

	expectStatus(t, s.do(http.MethodGet, "/tournaments/99", "", ""), http.StatusNotFound)
	expectStatus(t, s.do(http.MethodGet, "/tournaments/abc", "", ""), http.StatusBadRequest)
}

func TestAuthorizeManagement(t *testing.T) {
	s := newTestServer(t, false)
	s.createTournament("A", "2024-01-01", "2024-01-10")

	rec := s.do(http.MethodGet, "/tournaments/1/manage?password=pw", "", "")
	expectStatus(t, rec, http.StatusOK)
	body := decode[map[string]json.RawMessage](t, rec)
	var token string
	if err := json.Unmarshal(body["token"], &token); err != nil || !strings.HasPrefix(token, "mgmt.") {
		t.Fatalf("expected management token, got %s", body["token"])
	}

	expectStatus(t, s.do(http.MethodGet, "/tournaments/1/manage", "", ""), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodGet, "/tournaments/1/manage?password=nope", "", ""), http.StatusForbidden)
	expectStatus(t, s.do(http.MethodGet, "/tournaments/2/manage?password=pw", "", ""), http.StatusNotFound)
}

func TestPlayers(t *testing.T) {
	s := newTestServer(t, false)
	s.createPlayer("Momota")
	rec := s.postJSON("/players", map[string]string{"first_name": "Lin", "last_name": "Dan", "club": "PLA"})
	expectStatus(t, rec, http.StatusCreated)

	rec = s.postJSON("/players", map[string]string{"first_name": "Lin"})
	expectStatus(t, rec, http.StatusBadRequest)
	expectStatus(t, s.postJSON("/players", map[string]string{}), http.StatusBadRequest)

	rec = s.do(http.MethodGet, "/players", "", "")
	expectStatus(t, rec, http.StatusOK)
	players := decode[map[string][]models.Player](t, rec)["players"]
	if len(players) != 2 || players[1].Club != "PLA" {
		t.Fatalf("unexpected players %+v", players)
	}

	searches := []struct {
		rec  *httptest.ResponseRecorder
		want int
	}{
		{s.do(http.MethodGet, "/players/search?query=lin", "", ""), 1},
		{s.do(http.MethodGet, "/players/search?query=", "", ""), 0},
		{s.do(http.MethodGet, "/players/search", "", ""), 0},
		{s.do(http.MethodPost, "/players/search", "application/x-www-form-urlencoded", "query=mom"), 1},
		{s.postJSON("/players/search", map[string]string{"query": "o"}), 1},
	}
	for i, c := range searches {
		expectStatus(t, c.rec, http.StatusOK)
		body := decode[map[string][]models.Player](t, c.rec)
		found, ok := body["players"]
		if !ok || len(found) != c.want {
			t.Errorf("search %d: expected %d players, got %+v", i, c.want, body)
		}
	}
}

func TestRegisterPlayer(t *testing.T) {
	s := newTestServer(t, false)
	s.createTournament("Doubles", "2024-01-01", "2024-01-10")
	s.createPlayer("Ahsan")
	s.createPlayer("Setiawan")

	rec := s.postJSON("/tournaments/1/players/1", map[string]int64{"partner_id": 2})
	expectStatus(t, rec, http.StatusCreated)
	reg := decode[models.Registration](t, rec)
	if reg.PartnerID == nil || *reg.PartnerID != 2 {
		t.Fatalf("unexpected registration %+v", reg)
	}

	expectStatus(t, s.do(http.MethodPost, "/tournaments/1/players/1", "", ""), http.StatusConflict)
	expectStatus(t, s.do(http.MethodPost, "/tournaments/9/players/1", "", ""), http.StatusNotFound)
	expectStatus(t, s.do(http.MethodPost, "/tournaments/1/players/9", "", ""), http.StatusNotFound)
	expectStatus(t, s.do(http.MethodPost, "/tournaments/1/players/x", "", ""), http.StatusBadRequest)
	expectStatus(t, s.postJSON("/tournaments/1/players/2", map[string]int64{"partner_id": 2}), http.StatusBadRequest)
	expectStatus(t, s.postJSON("/tournaments/1/players/2", map[string]int64{"partner_id": 7}), http.StatusNotFound)

	rec = s.do(http.MethodGet, "/tournaments/1/players", "", "")
	expectStatus(t, rec, http.StatusOK)
	entries := decode[map[string][]models.RegistrationEntry](t, rec)["registrations"]
	if len(entries) != 1 || entries[0].PlayerName != "Ahsan" || entries[0].PartnerName != "Setiawan" {
		t.Fatalf("unexpected registrations %+v", entries)
	}
	expectStatus(t, s.do(http.MethodGet, "/tournaments/5/players", "", ""), http.StatusNotFound)
}

func TestRegisterPlayerRequiresToken(t *testing.T) {
	s := newTestServer(t, true)
	s.createTournament("Locked", "2024-01-01", "2024-01-10")
	s.createPlayer("Gated")

	expectStatus(t, s.do(http.MethodPost, "/tournaments/1/players/1", "", ""), http.StatusForbidden)

	rec := s.do(http.MethodGet, "/tournaments/1/manage?password=pw", "", "")
	expectStatus(t, rec, http.StatusOK)
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = s.do(http.MethodPost, "/tournaments/1/players/1", "", "", "Authorization", "Bearer "+body.Token)
	expectStatus(t, rec, http.StatusCreated)
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t, false)
	expectStatus(t, s.do(http.MethodGet, "/healthz", "", ""), http.StatusOK)

	rec := s.do(http.MethodGet, "/version", "", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]string](t, rec); got["schema_version"] != "" {
		t.Fatalf("memory store has no schema version, got %v", got)
	}
}
