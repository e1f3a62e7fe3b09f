package compositor

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
)

// ParseColor parses a color spec: "default" (or empty), a hex value such as
// "#ff8800" or "#f80", or a terminal color name such as "red" or "navy".
func ParseColor(spec string) (Color, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	switch s {
	case "", "default", "none", "reset":
		return ColorDefault, nil
	}

	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return ColorDefault, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid hex color").
				WithContext("color", spec)
		}
		return fromColorful(c), nil
	}

	tc := tcell.GetColor(s)
	if hex := tc.Hex(); hex >= 0 {
		return Hex(uint32(hex)), nil
	}
	return ColorDefault, apperrors.New(apperrors.ErrCodeInvalidInput, "unknown color name").
		WithContext("color", spec)
}

// MustParseColor is ParseColor for static specs; it panics on error.
func MustParseColor(spec string) Color {
	c, err := ParseColor(spec)
	if err != nil {
		panic(err)
	}
	return c
}

// Gradient returns n colors interpolated in RGB space from start to end,
// inclusive at both ends. A default color cannot be interpolated, so when
// either end is the default every entry is start.
func Gradient(start, end Color, n int) []Color {
	if n <= 0 {
		return nil
	}
	out := make([]Color, n)
	if start.IsDefault() || end.IsDefault() || n == 1 {
		for i := range out {
			out[i] = start
		}
		return out
	}

	from, to := toColorful(start), toColorful(end)
	last := float64(n - 1)
	for i := range out {
		out[i] = fromColorful(from.BlendRgb(to, float64(i)/last))
	}
	return out
}

func toColorful(c Color) colorful.Color {
	r, g, b := c.RGB255()
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

func fromColorful(c colorful.Color) Color {
	r, g, b := c.Clamped().RGB255()
	return RGB(r, g, b)
}
