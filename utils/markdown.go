package utils

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/k3a/html2text"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// PreviewWordLimit is the number of words kept in a history overview preview.
const PreviewWordLimit = 20

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderMarkdown converts a markdown section to HTML. Raw HTML in the source is
// not passed through.
func RenderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// PlainPreview renders markdown to plain text and keeps at most wordLimit
// words, appending "..." when anything was cut.
func PlainPreview(source string, wordLimit int) string {
	text := source
	if rendered, err := RenderMarkdown(source); err == nil {
		text = html2text.HTML2Text(rendered)
	}
	return TruncateWords(text, wordLimit)
}

// TruncateWords collapses whitespace and cuts text after wordLimit words.
func TruncateWords(text string, wordLimit int) string {
	words := strings.Fields(text)
	if wordLimit <= 0 || len(words) <= wordLimit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:wordLimit], " ") + "..."
}
