package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Error codes used in APIErrorDetail.Code.
const (
	codeUnauthorized = "unauthorized"
	codeInvalidToken = "invalid_token"
	codeInvalidID    = "invalid_id"
	codeNotFound     = "not_found"
	codeStorage      = "storage_error"
)

// APIErrorDetail is one entry of an error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse is the body of every non-pipeline error response.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a single-entry error response with the given HTTP status.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	_ = json.NewEncoder(w).Encode(APIErrorResponse{
		Errors: []APIErrorDetail{{Code: code, Status: strconv.Itoa(httpStatus), Detail: detail}},
	})
}

func writeAuthRequired(w http.ResponseWriter) {
	WriteAPIError(w, http.StatusUnauthorized, codeUnauthorized, "Authorization required")
}
