package normalize

import (
	"fmt"

	"bondedlink/internal/link/model"
)

// FormatCitations renders citations as numbered lines for plain-text clients.
func FormatCitations(citations []any) []string {
	lines := make([]string, 0, len(citations))
	for i, c := range citations {
		label := ""
		switch t := c.(type) {
		case string:
			label = t
		case map[string]any:
			label = model.Metadata(t).FirstText("title", "name", "source", "url")
		}
		if label == "" {
			lines = append(lines, fmt.Sprintf("[%d]", i+1))
			continue
		}
		lines = append(lines, fmt.Sprintf("[%d] %s", i+1, label))
	}
	return lines
}
