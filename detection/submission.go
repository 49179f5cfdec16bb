// Package detection shapes classification submissions into history records
// and reassembles stored records into reports. It holds no storage handles;
// persistence lives behind repository.HistoryRepository.
package detection

// ClassificationResult is one cropped image returned by the classifier for a
// detected class.
type ClassificationResult struct {
	Class string `json:"class"`
	Image string `json:"image"` // data URI or raw base64
}

// Submission is the payload posted by the classification client after a
// detection run.
type Submission struct {
	AcneTypes             []string               `json:"acne_types"`
	ClassificationResults []ClassificationResult `json:"classification_results"`
	DetectionClasses      []string               `json:"detection_classes"`
	DetectionCount        int                    `json:"detection_count"`

	// exactly one of these is expected; the structured form is preferred
	RecommendationSections *Sections `json:"recommendation_sections,omitempty"`
	Recommendation         string    `json:"recommendation,omitempty"`

	CapturedImage   string `json:"captured_image"`
	DetectionResult string `json:"detection_result"`
}

// Validate checks that every field the pipeline relies on is present. Empty
// lists are accepted, absent ones are not. It has no side effects.
func (s *Submission) Validate() error {
	switch {
	case s == nil:
		return &ValidationError{Field: "payload"}
	case s.AcneTypes == nil:
		return &ValidationError{Field: "acne_types"}
	case s.ClassificationResults == nil:
		return &ValidationError{Field: "classification_results"}
	case s.DetectionClasses == nil:
		return &ValidationError{Field: "detection_classes"}
	case s.CapturedImage == "":
		return &ValidationError{Field: "captured_image"}
	case s.RecommendationSections == nil && s.Recommendation == "":
		return &ValidationError{Field: "recommendation_sections"}
	}
	return nil
}

// Sections returns the four recommendation sections of the submission. A
// structured sections object is passed through unchanged; otherwise the
// combined text is split with SplitRecommendation.
func (s *Submission) Sections() (Sections, error) {
	if s.RecommendationSections != nil {
		return *s.RecommendationSections, nil
	}
	return SplitRecommendation(s.Recommendation)
}
