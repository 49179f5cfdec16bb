package detection

import (
	"fmt"
	"slices"
	"time"

	"github.com/camden-git/acnesense/models"
)

// Report is the presentation view of one history record.
type Report struct {
	HistoryID     uint      `json:"id_riwayat"`
	UserID        uint      `json:"-"`
	Title         string    `json:"judul_penyakit"`
	DetectedCount int       `json:"jumlah_deteksi"`
	AcneTypes     []string  `json:"klas_deteksi"`
	OriginalImage string    `json:"image_asli"`
	ClassImages   []string  `json:"image_klas"`
	CreatedAt     time.Time `json:"created_at"`
	Sections
}

// AssembleReport combines a history record with its detail rows, which must
// be in insertion order. Acne types are de-duplicated over the discrete
// per-row labels, keeping first-seen order. Rows without an image are left
// out of ClassImages.
func AssembleReport(h *models.History, details []models.HistoryDetail) *Report {
	labels := make([]string, 0, len(details))
	images := make([]string, 0, len(details))
	for _, d := range details {
		if d.AcneType != "" {
			labels = append(labels, d.AcneType)
		}
		if d.DetailImage != nil && *d.DetailImage != "" {
			images = append(images, ToDataURI(*d.DetailImage))
		}
	}

	return &Report{
		HistoryID:     h.ID,
		UserID:        h.UserID,
		Title:         h.Title,
		DetectedCount: len(details),
		AcneTypes:     UniqueOrdered(labels),
		OriginalImage: h.Image,
		ClassImages:   images,
		CreatedAt:     h.CreatedAt,
		Sections: Sections{
			Overview:        h.Overview,
			Recommendations: h.Recommendations,
			SkincareTips:    h.SkincareTips,
			ImportantNotes:  h.ImportantNotes,
		},
	}
}

// RenderSections returns a copy of the report with every non-empty section
// passed through render. The receiver is left untouched so cached reports
// stay raw.
func (r *Report) RenderSections(render func(string) (string, error)) (*Report, error) {
	out := *r
	out.AcneTypes = slices.Clone(r.AcneTypes)
	out.ClassImages = slices.Clone(r.ClassImages)

	fields := []*string{&out.Overview, &out.Recommendations, &out.SkincareTips, &out.ImportantNotes}
	for _, f := range fields {
		if *f == "" {
			continue
		}
		rendered, err := render(*f)
		if err != nil {
			return nil, fmt.Errorf("failed to render report section: %w", err)
		}
		*f = rendered
	}
	return &out, nil
}

// UniqueOrdered returns values with duplicates removed, keeping the first
// occurrence of each.
func UniqueOrdered(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
