package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/acnesense/detection"
	"github.com/camden-git/acnesense/services"
)

// submissions carry several base64 images
const maxSubmissionBytes = 32 << 20

type DetectionHandler struct {
	Service *services.DetectionService
}

func NewDetectionHandler(service *services.DetectionService) *DetectionHandler {
	return &DetectionHandler{Service: service}
}

// SaveResponse is returned after a submission has been stored.
type SaveResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	HistoryID uint   `json:"id_riwayat"`
}

// SaveDetection handles POST /api/save-detection
func (h *DetectionHandler) SaveDetection(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r)
	if !ok {
		writeAuthRequired(w)
		return
	}

	var sub *detection.Submission
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		log.Printf("detection: undecodable submission from user %d: %v", user.ID, err)
		writeJSON(w, http.StatusBadRequest, StatusResponse{Message: "Data tidak lengkap."})
		return
	}

	history, err := h.Service.Save(r.Context(), user.ID, sub)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, SaveResponse{
			Success:   true,
			Message:   "Data deteksi dan detail berhasil disimpan.",
			HistoryID: history.ID,
		})
	case errors.Is(err, detection.ErrValidation):
		writeJSON(w, http.StatusBadRequest, StatusResponse{Message: "Data tidak lengkap."})
	case errors.Is(err, detection.ErrParse):
		writeJSON(w, http.StatusBadRequest, StatusResponse{Message: "Format rekomendasi tidak valid.", Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, StatusResponse{Message: "Gagal menyimpan data deteksi.", Error: err.Error()})
	}
}

// GetReport handles GET /api/hasil/{id_riwayat}. Sections are rendered to
// HTML unless ?format=markdown is given.
func (h *DetectionHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	user, historyID, ok := h.requestTarget(w, r)
	if !ok {
		return
	}

	opts := services.ReportOptions{Render: services.RenderHTML}
	if r.URL.Query().Get("format") == "markdown" {
		opts.Render = services.RenderMarkdown
	}

	report, err := h.Service.Report(r.Context(), user, historyID, opts)
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListHistory handles GET /api/riwayat?sort=
func (h *DetectionHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r)
	if !ok {
		writeAuthRequired(w)
		return
	}

	summaries, err := h.Service.List(r.Context(), user.ID, r.URL.Query().Get("sort"))
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// DeleteHistory handles DELETE /api/riwayat/{id_riwayat}
func (h *DetectionHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	user, historyID, ok := h.requestTarget(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), user, historyID); err != nil {
		writeReadError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DetectionHandler) requestTarget(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	user, ok := UserFromContext(r)
	if !ok {
		writeAuthRequired(w)
		return 0, 0, false
	}
	historyID, err := strconv.ParseUint(chi.URLParam(r, "id_riwayat"), 10, 64)
	if err != nil || historyID == 0 {
		WriteAPIError(w, http.StatusBadRequest, codeInvalidID, "Invalid history ID")
		return 0, 0, false
	}
	return user.ID, uint(historyID), true
}

func writeReadError(w http.ResponseWriter, err error) {
	if errors.Is(err, detection.ErrNotFound) {
		WriteAPIError(w, http.StatusNotFound, codeNotFound, "History not found")
		return
	}
	log.Printf("detection: read failed: %v", err)
	WriteAPIError(w, http.StatusInternalServerError, codeStorage, "Failed to load detection history")
}
