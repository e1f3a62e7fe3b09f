package sim

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffCaptures returns a unified diff between two captures, or "" when they
// match. Trailing spaces are kept so column mistakes stay visible.
func DiffCaptures(want, got string) string {
	if want == got {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(markLineEnds(want)),
		B:        difflib.SplitLines(markLineEnds(got)),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return err.Error()
	}
	return text
}

func markLineEnds(s string) string {
	return strings.ReplaceAll(s, "\n", "|\n") + "|"
}

// CaptureRegion returns the text of a rectangle of the screen.
func (h *Host) CaptureRegion(x, y, w, hgt int) string {
	lines := make([]string, 0, hgt)
	for row := y; row < y+hgt; row++ {
		var line strings.Builder
		for col := x; col < x+w; col++ {
			c := h.CellAt(col, row)
			if c.Rune == 0 {
				continue
			}
			line.WriteRune(c.Rune)
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
