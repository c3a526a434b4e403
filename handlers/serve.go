// Package handlers serve.go
package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"
)

func HandleRoot(w http.ResponseWriter, r *http.Request) {
	tmpl, err := template.ParseFiles("templates/game.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = tmpl.Execute(w, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

type diagnosticsPlayer struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LastUpdate int64  `json:"lastUpdate"`
	Score      int    `json:"score"`
}

// HandleDiagnostics reports relay status and the live roster as JSON.
func (h *Hub) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	roster := make([]diagnosticsPlayer, 0, len(h.players))
	for id, st := range h.players {
		roster = append(roster, diagnosticsPlayer{
			ID:         id,
			Name:       st.player.Name,
			LastUpdate: st.lastUpdate.UnixMilli(),
			Score:      st.score,
		})
	}
	sessionCount := len(h.sessions)
	h.mu.Unlock()

	payload := struct {
		Status     string              `json:"status"`
		ServerTime int64               `json:"serverTime"`
		TickMillis int64               `json:"tickMillis"`
		Sessions   int                 `json:"sessions"`
		Players    []diagnosticsPlayer `json:"players"`
	}{
		Status:     "ok",
		ServerTime: time.Now().UnixMilli(),
		TickMillis: tickInterval.Milliseconds(),
		Sessions:   sessionCount,
		Players:    roster,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
