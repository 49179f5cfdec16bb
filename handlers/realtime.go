package handlers

import (
	"net/http"

	"github.com/camden-git/acnesense/realtime"
)

// RealtimeHandler upgrades GET /api/ws to a websocket that receives the
// authenticated user's events.
func RealtimeHandler(hub *realtime.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r)
		if !ok {
			writeAuthRequired(w)
			return
		}
		hub.ServeWS(w, r, user.ID)
	}
}
