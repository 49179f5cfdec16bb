package detection

import "strings"

// Section markers of a combined recommendation text, in their required order.
const (
	MarkerOverview        = "## OVERVIEW"
	MarkerRecommendations = "## RECOMMENDATIONS"
	MarkerSkincareTips    = "## SKINCARE TIPS"
	MarkerImportantNotes  = "## IMPORTANT NOTES"
)

var sectionMarkers = [4]string{
	MarkerOverview,
	MarkerRecommendations,
	MarkerSkincareTips,
	MarkerImportantNotes,
}

// Sections holds the four recommendation texts. Each one includes its own
// header line.
type Sections struct {
	Overview        string `json:"overview"`
	Recommendations string `json:"recommendations"`
	SkincareTips    string `json:"skincare_tips"`
	ImportantNotes  string `json:"important_notes"`
}

// Concat joins the sections back together without separators.
func (s Sections) Concat() string {
	return s.Overview + s.Recommendations + s.SkincareTips + s.ImportantNotes
}

// SplitRecommendation splits a combined recommendation text into its four
// sections in a single forward scan. Each section runs from its marker up to
// the next marker, or to the end of the text for the last one found.
//
// The first three markers are mandatory and must appear in order; a missing
// or out-of-order one yields a *ParseError. A missing IMPORTANT NOTES marker
// leaves that section empty. When a marker is repeated, its first occurrence
// after the previous marker is used and later copies stay in the body. Any
// text before the OVERVIEW marker is dropped.
func SplitRecommendation(text string) (Sections, error) {
	starts := [len(sectionMarkers)]int{-1, -1, -1, -1}

	pos := 0
	for i, marker := range sectionMarkers {
		idx := strings.Index(text[pos:], marker)
		if idx < 0 {
			if i == len(sectionMarkers)-1 {
				break
			}
			return Sections{}, &ParseError{Marker: marker}
		}
		starts[i] = pos + idx
		pos = starts[i] + len(marker)
	}

	section := func(i int) string {
		if starts[i] < 0 {
			return ""
		}
		end := len(text)
		if i+1 < len(starts) && starts[i+1] >= 0 {
			end = starts[i+1]
		}
		return text[starts[i]:end]
	}

	return Sections{
		Overview:        section(0),
		Recommendations: section(1),
		SkincareTips:    section(2),
		ImportantNotes:  section(3),
	}, nil
}
