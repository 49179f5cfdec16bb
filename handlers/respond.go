package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/camden-git/acnesense/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

// StatusResponse is the {success, message} envelope of the detection and
// auth endpoints.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// UserFromContext returns the user stored by AuthMiddleware.
func UserFromContext(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}
