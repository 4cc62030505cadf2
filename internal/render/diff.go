package render

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedDiff returns a unified diff turning local into template. It is
// empty when both are equal.
func UnifiedDiff(path string, local, template []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(local)),
		B:        difflib.SplitLines(string(template)),
		FromFile: "local/" + path,
		ToFile:   "template/" + path,
		Context:  3,
	})
}

// ColorDiff styles added and removed lines of a unified diff
func ColorDiff(diff string, color bool) string {
	if !color || diff == "" {
		return diff
	}
	lines := strings.SplitAfter(diff, "\n")
	var b strings.Builder
	for _, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		nl := line[len(body):]
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			b.WriteString(styleHeading.Render(body))
		case strings.HasPrefix(body, "@@"):
			b.WriteString(styleChanged.Render(body))
		case strings.HasPrefix(body, "+"):
			b.WriteString(styleOK.Render(body))
		case strings.HasPrefix(body, "-"):
			b.WriteString(styleError.UnsetBold().Render(body))
		default:
			b.WriteString(body)
		}
		b.WriteString(nl)
	}
	return b.String()
}
