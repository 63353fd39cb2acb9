package game

import "sort"

// LeaderboardEntry is one ranked ship.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Color    string `json:"color"`
}

// Leaderboard ranks the players of ws by score (descending), breaking ties by
// name and then id so the order is stable between snapshots.
// n <= 0 returns every player.
func Leaderboard(ws WorldState, n int) []LeaderboardEntry {
	players := make([]PlayerState, 0, len(ws.Players))
	for _, p := range ws.Players {
		players = append(players, p)
	}

	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		if players[i].Name != players[j].Name {
			return players[i].Name < players[j].Name
		}
		return players[i].ID < players[j].ID
	})

	if n > 0 && len(players) > n {
		players = players[:n]
	}

	entries := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		entries[i] = LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
			Color:    p.Color,
		}
	}
	return entries
}
