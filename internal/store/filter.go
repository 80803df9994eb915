package store

import (
	"sort"
	"tourney-backend/internal/models"
)

// applyTournamentFilter filters and orders tournaments for backends that
// cannot express the query natively. Search uses models.ContainsFold.
func applyTournamentFilter(all []*models.Tournament, f models.TournamentFilter) []*models.Tournament {
	result := make([]*models.Tournament, 0, len(all))
	for _, t := range all {
		if f.Search != "" && !models.ContainsFold(t.Name, f.Search) {
			continue
		}
		switch f.Status {
		case models.StatusOngoing:
			if !t.Ongoing(f.Today) {
				continue
			}
		case models.StatusRecent:
			if !t.Ended(f.Today) {
				continue
			}
		}
		result = append(result, t)
	}

	if f.Status == models.StatusRecent {
		sort.SliceStable(result, func(i, j int) bool {
			if result[i].DateTo != result[j].DateTo {
				return result[i].DateTo.After(result[j].DateTo)
			}
			return result[i].ID < result[j].ID
		})
		if len(result) > models.RecentLimit {
			result = result[:models.RecentLimit]
		}
		return result
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func sortPlayers(players []*models.Player) {
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
}

func sortEntries(entries []*models.RegistrationEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
}
