package models

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

type TournamentType string

const (
	TypeSingles TournamentType = "Singles"
	TypeDoubles TournamentType = "Doubles"
)

func (t TournamentType) Valid() bool {
	return t == TypeSingles || t == TypeDoubles
}

type TournamentStatus string

const (
	StatusAny     TournamentStatus = ""
	StatusOngoing TournamentStatus = "ongoing"
	StatusRecent  TournamentStatus = "recent"
)

// RecentLimit caps the number of tournaments returned for StatusRecent.
const RecentLimit = 5

// ParseTournamentStatus maps a query value to a status. Unknown values mean
// no status filter.
func ParseTournamentStatus(s string) TournamentStatus {
	switch TournamentStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOngoing:
		return StatusOngoing
	case StatusRecent:
		return StatusRecent
	default:
		return StatusAny
	}
}

type Tournament struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Type       TournamentType `json:"type"`
	Categories string         `json:"categories,omitempty"`
	DateFrom   civil.Date     `json:"date_from"`
	DateTo     civil.Date     `json:"date_to"`
	Courts     *int           `json:"courts,omitempty"`
	Password   string         `json:"-"` // stored form, plain or hashed
	CreatedAt  time.Time      `json:"created_at"`
}

// Ongoing reports whether today falls inside [DateFrom, DateTo].
func (t *Tournament) Ongoing(today civil.Date) bool {
	return !today.Before(t.DateFrom) && !today.After(t.DateTo)
}

// Ended reports whether the tournament finished strictly before today.
func (t *Tournament) Ended(today civil.Date) bool {
	return t.DateTo.Before(today)
}

type TournamentDetail struct {
	Tournament
	Participants []string `json:"participants"`
}

// TournamentFilter selects tournaments for listing. Today is resolved by the
// caller so every backend evaluates the same date.
type TournamentFilter struct {
	Search string
	Status TournamentStatus
	Today  civil.Date
}

type Player struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Club      string    `json:"club,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName is the canonical name; single-name players have an empty last name.
func (p *Player) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ContainsFold reports whether substr is within s, ignoring the case of
// ASCII letters only. SQLite LIKE folds the same way.
func ContainsFold(s, substr string) bool {
	return strings.Contains(foldASCII(s), foldASCII(substr))
}

func foldASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// MatchesQuery reports whether query is a substring of the first, last or
// display name under ContainsFold.
func (p *Player) MatchesQuery(query string) bool {
	return ContainsFold(p.FirstName, query) ||
		ContainsFold(p.LastName, query) ||
		ContainsFold(p.DisplayName(), query)
}

type Registration struct {
	ID           int64     `json:"id"`
	TournamentID int64     `json:"tournament_id"`
	PlayerID     int64     `json:"player_id"`
	PartnerID    *int64    `json:"partner_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Key identifies the (player, tournament) pair that must be unique.
func (r *Registration) Key() RegistrationKey {
	return RegistrationKey{TournamentID: r.TournamentID, PlayerID: r.PlayerID}
}

type RegistrationKey struct {
	TournamentID int64
	PlayerID     int64
}

type RegistrationEntry struct {
	Registration
	PlayerName  string `json:"player_name"`
	PartnerName string `json:"partner_name,omitempty"`
}

// NewTournament is the input to CreateTournament.
type NewTournament struct {
	Name       string
	Type       string
	Categories string
	DateFrom   string
	DateTo     string
	Courts     *int64
	Password   string
}

// NewPlayer is the input to CreatePlayer. Either Name or FirstName/LastName is used.
type NewPlayer struct {
	Name      string
	FirstName string
	LastName  string
	Club      string
}
