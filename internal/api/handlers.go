package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"asteroid-arena/internal/game"
)

const (
	serviceName        = "Space Shooter Backend"
	defaultLeaderboard = 10
	maxLeaderboard     = 100
)

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":        "OK",
		"service":       serviceName,
		"players":       h.engine.PlayerCount(),
		"tick":          h.engine.TickCount(),
		"uptimeSeconds": int64(h.engine.Uptime().Seconds()),
	})
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboard
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLeaderboard)
	}

	writeJSON(w, game.Leaderboard(h.engine.Snapshot(), limit))
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	img, err := h.renderer.PNG(h.engine.Snapshot())
	if err != nil {
		log.Printf("⚠️ Frame render failed: %v", err)
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
