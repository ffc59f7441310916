package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/DoyleJ11/fanwars-backend/internal/hub"
)

const queryTimeout = 2 * time.Second

// Rooms lists the rooms this match server is hosting.
func Rooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []hub.RoomInfo, 1)
		if !h.Post(hub.GetRooms{Reply: reply}) {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}

		var rooms []hub.RoomInfo
		select {
		case rooms = <-reply:
		case <-h.Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		case <-time.After(queryTimeout):
			http.Error(w, "hub busy", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Rooms []hub.RoomInfo `json:"rooms"`
		}{Rooms: rooms})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
