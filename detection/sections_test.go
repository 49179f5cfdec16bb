package detection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormedRecommendation = "## OVERVIEW\nPapules are small red bumps.\n\n" +
	"## RECOMMENDATIONS\n\n- Use a gentle cleanser\n\n" +
	"## SKINCARE TIPS\n\n- Do not pop pimples\n\n" +
	"## IMPORTANT NOTES\n\nSee a dermatologist if it persists.\n"

func TestSplitRecommendation_AllMarkers(t *testing.T) {
	t.Parallel()

	sections, err := SplitRecommendation(wellFormedRecommendation)
	require.NoError(t, err)

	assert.Equal(t, "## OVERVIEW\nPapules are small red bumps.\n\n", sections.Overview)
	assert.Equal(t, "## RECOMMENDATIONS\n\n- Use a gentle cleanser\n\n", sections.Recommendations)
	assert.Equal(t, "## SKINCARE TIPS\n\n- Do not pop pimples\n\n", sections.SkincareTips)
	assert.Equal(t, "## IMPORTANT NOTES\n\nSee a dermatologist if it persists.\n", sections.ImportantNotes)
}

func TestSplitRecommendation_ConcatReproducesInput(t *testing.T) {
	t.Parallel()

	inputs := []string{
		wellFormedRecommendation,
		"## OVERVIEW## RECOMMENDATIONS## SKINCARE TIPS## IMPORTANT NOTES",
		"## OVERVIEW\nä ü\n## RECOMMENDATIONS\n🙂\n## SKINCARE TIPS\nx\n## IMPORTANT NOTES\n",
	}
	for _, in := range inputs {
		sections, err := SplitRecommendation(in)
		require.NoError(t, err)
		assert.Equal(t, in, sections.Concat())
	}
}

func TestSplitRecommendation_MissingImportantNotes(t *testing.T) {
	t.Parallel()

	text := "## OVERVIEW\na\n## RECOMMENDATIONS\nb\n## SKINCARE TIPS\nc\n"
	sections, err := SplitRecommendation(text)
	require.NoError(t, err)

	assert.Equal(t, "", sections.ImportantNotes)
	assert.Equal(t, "## SKINCARE TIPS\nc\n", sections.SkincareTips, "last found section runs to end of text")
}

func TestSplitRecommendation_MissingMandatoryMarker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		marker string
	}{
		{"no overview", "## RECOMMENDATIONS\nb\n## SKINCARE TIPS\nc", MarkerOverview},
		{"no recommendations", "## OVERVIEW\na\n## SKINCARE TIPS\nc\n## IMPORTANT NOTES\nd", MarkerRecommendations},
		{"no skincare tips", "## OVERVIEW\na\n## RECOMMENDATIONS\nb\n## IMPORTANT NOTES\nd", MarkerSkincareTips},
		{"empty text", "", MarkerOverview},
		{"out of order", "## RECOMMENDATIONS\nb\n## OVERVIEW\na\n## SKINCARE TIPS\nc", MarkerRecommendations},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := SplitRecommendation(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tt.marker, parseErr.Marker)
		})
	}
}

func TestSplitRecommendation_DuplicateMarkerStaysInBody(t *testing.T) {
	t.Parallel()

	text := "## OVERVIEW\na\n## RECOMMENDATIONS\nb\n## RECOMMENDATIONS\nb2\n## SKINCARE TIPS\nc\n## IMPORTANT NOTES\nd"
	sections, err := SplitRecommendation(text)
	require.NoError(t, err)

	assert.Equal(t, "## RECOMMENDATIONS\nb\n## RECOMMENDATIONS\nb2\n", sections.Recommendations)
	assert.Equal(t, text, sections.Concat())
}

func TestSplitRecommendation_DropsPreamble(t *testing.T) {
	t.Parallel()

	sections, err := SplitRecommendation("Here is your plan:\n" + wellFormedRecommendation)
	require.NoError(t, err)
	assert.Equal(t, wellFormedRecommendation, sections.Concat())
}
