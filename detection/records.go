package detection

import (
	"strings"

	"github.com/camden-git/acnesense/models"
)

// JPEGDataURIPrefix is stripped from detail images before storage and put
// back when a report is assembled.
const JPEGDataURIPrefix = "data:image/jpeg;base64,"

// TitleSeparator joins acne type labels into a history title.
const TitleSeparator = ", "

// NewHistory builds the history record for a validated submission. ID and
// CreatedAt are assigned by the store.
func NewHistory(userID uint, s *Submission, sections Sections) *models.History {
	return &models.History{
		UserID:          userID,
		Title:           strings.Join(s.AcneTypes, TitleSeparator),
		Image:           s.DetectionResult,
		Overview:        sections.Overview,
		Recommendations: sections.Recommendations,
		SkincareTips:    sections.SkincareTips,
		ImportantNotes:  sections.ImportantNotes,
	}
}

// BuildDetails builds one detail row per entry of DetectionClasses, in order.
// Each row takes the image of the first classification result with the same
// class label, or nil when there is none.
func BuildDetails(historyID uint, s *Submission) []models.HistoryDetail {
	details := make([]models.HistoryDetail, 0, len(s.DetectionClasses))
	for _, label := range s.DetectionClasses {
		details = append(details, models.HistoryDetail{
			HistoryID:           historyID,
			AcneType:            label,
			ClassificationCount: s.DetectionCount,
			DetailImage:         findClassImage(s.ClassificationResults, label),
		})
	}
	return details
}

func findClassImage(results []ClassificationResult, label string) *string {
	for _, r := range results {
		if r.Class != label {
			continue
		}
		img := StripDataURIPrefix(r.Image)
		if img == "" {
			return nil
		}
		return &img
	}
	return nil
}

// StripDataURIPrefix removes a leading JPEG data URI prefix, if present.
func StripDataURIPrefix(image string) string {
	return strings.TrimPrefix(image, JPEGDataURIPrefix)
}

// ToDataURI prefixes a stored base64 payload so browsers can display it.
func ToDataURI(base64Payload string) string {
	return JPEGDataURIPrefix + base64Payload
}
