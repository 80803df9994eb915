package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"tourney-backend/internal/auth"
	"tourney-backend/internal/models"
	"tourney-backend/internal/service"

	"github.com/rs/zerolog/log"
)

type Handler struct {
	svc          *service.Service
	tokens       *auth.Tokens
	requireToken bool
}

// New builds the HTTP handlers. When requireToken is set, registering a
// player needs a management token for the tournament.
func New(svc *service.Service, tokens *auth.Tokens, requireToken bool) *Handler {
	return &Handler{svc: svc, tokens: tokens, requireToken: requireToken}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	manage := auth.RequireManagement(h.tokens, h.requireToken)

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /version", h.Version)
	mux.HandleFunc("POST /tournaments", h.CreateTournament)
	mux.HandleFunc("GET /tournaments", h.ListTournaments)
	mux.HandleFunc("GET /tournaments/{id}", h.GetTournament)
	mux.HandleFunc("GET /tournaments/{id}/manage", h.AuthorizeManagement)
	mux.HandleFunc("GET /tournaments/{id}/players", h.ListRegistrations)
	mux.HandleFunc("POST /tournaments/{id}/players/{player_id}", manage(h.RegisterPlayer))
	mux.HandleFunc("POST /players", h.CreatePlayer)
	mux.HandleFunc("GET /players", h.ListPlayers)
	mux.HandleFunc("GET /players/search", h.SearchPlayers)
	mux.HandleFunc("POST /players/search", h.SearchPlayers)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	version, err := h.svc.SchemaVersion(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"schema_version": version})
}

type createTournamentForm struct {
	Name       string `json:"name" form:"name"`
	Type       string `json:"type" form:"type"`
	Categories string `json:"categories" form:"categories"`
	DateFrom   string `json:"date_from" form:"date_from"`
	DateTo     string `json:"date_to" form:"date_to"`
	Courts     *int64 `json:"courts" form:"courts"`
	Password   string `json:"password" form:"password"`
}

func (h *Handler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var form createTournamentForm
	if err := parseForm(w, r, &form); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := h.svc.CreateTournament(r.Context(), models.NewTournament{
		Name:       form.Name,
		Type:       form.Type,
		Categories: form.Categories,
		DateFrom:   form.DateFrom,
		DateTo:     form.DateTo,
		Courts:     form.Courts,
		Password:   form.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tournaments, err := h.svc.ListTournaments(r.Context(), q.Get("search"), q.Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tournaments": tournaments})
}

func (h *Handler) GetTournament(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.GetTournament(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// AuthorizeManagement checks the tournament password and hands back a
// management token for it.
func (h *Handler) AuthorizeManagement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.AuthorizeManagement(r.Context(), id, r.URL.Query().Get("password"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.tokens.Issue(t.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tournament": t, "token": token})
}

type createPlayerForm struct {
	Name      string `json:"name" form:"name"`
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	Club      string `json:"club" form:"club"`
}

func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var form createPlayerForm
	if err := parseForm(w, r, &form); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.svc.CreatePlayer(r.Context(), models.NewPlayer(form))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.svc.ListPlayers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

type searchForm struct {
	Query string `json:"query" form:"query"`
}

func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	var form searchForm
	if err := parseForm(w, r, &form); err != nil {
		writeError(w, r, err)
		return
	}
	if form.Query == "" {
		form.Query = r.URL.Query().Get("query")
	}
	players, err := h.svc.SearchPlayers(r.Context(), form.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

type registerForm struct {
	PartnerID *int64 `json:"partner_id" form:"partner_id"`
}

func (h *Handler) RegisterPlayer(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	playerID, err := pathID(r, "player_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var form registerForm
	if err := parseForm(w, r, &form); err != nil {
		writeError(w, r, err)
		return
	}

	reg, err := h.svc.RegisterPlayer(r.Context(), tournamentID, playerID, form.PartnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.svc.ListRegistrations(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registrations": entries})
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields []models.FieldError `json:"fields,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}

	switch status {
	case http.StatusInternalServerError:
		log.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		body.Error = "internal server error"
	case http.StatusGatewayTimeout:
		log.Ctx(r.Context()).Warn().Err(err).Msg("store timed out")
		body.Error = models.ErrTimeout.Error()
	case http.StatusServiceUnavailable:
		log.Ctx(r.Context()).Warn().Err(err).Msg("store unavailable")
		body.Error = models.ErrUnavailable.Error()
	}
	writeJSON(w, status, body)
}
