package compositor

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/muesli/termenv"

	apperrors "github.com/odvcencio/termframe/pkg/errors"
)

// ANSI escape sequences.
const (
	ANSIEscape        = "\x1b["
	ANSIClearScreen   = "\x1b[2J"
	ANSIClearLine     = "\x1b[2K"
	ANSICursorHome    = "\x1b[H"
	ANSICursorHide    = "\x1b[?25l"
	ANSICursorShow    = "\x1b[?25h"
	ANSIReset         = "\x1b[0m"
	ANSIAltScreen     = "\x1b[?1049h"
	ANSIMainScreen    = "\x1b[?1049l"
	ANSIAutoWrapOff   = "\x1b[?7l"
	ANSIAutoWrapOn    = "\x1b[?7h"
	ANSIDefaultFG     = "\x1b[39m"
	ANSIDefaultBG     = "\x1b[49m"
	ANSIBoldDimOff    = "\x1b[22m"
	ANSIItalicOff     = "\x1b[23m"
	ANSIUnderlineOff  = "\x1b[24m"
	ANSIReverseOff    = "\x1b[27m"
	defaultSGRCacheSz = 256
)

var attrOn = [...]struct {
	attr Attr
	seq  string
}{
	{AttrBold, "\x1b[1m"},
	{AttrDim, "\x1b[2m"},
	{AttrItalic, "\x1b[3m"},
	{AttrUnderline, "\x1b[4m"},
	{AttrReverse, "\x1b[7m"},
}

// CursorTo returns the sequence moving the cursor to 0-based (x, y).
func CursorTo(x, y int) string {
	return string(appendCursorTo(nil, x, y))
}

// appendCursorTo appends ESC[row;colH with 1-based coordinates.
func appendCursorTo(dst []byte, x, y int) []byte {
	dst = append(dst, ANSIEscape...)
	dst = strconv.AppendInt(dst, int64(y+1), 10)
	dst = append(dst, ';')
	dst = strconv.AppendInt(dst, int64(x+1), 10)
	return append(dst, 'H')
}

// appendAttrDelta appends the sequences that take the terminal from attrs
// from to attrs to. Bold and dim share one off code, so whichever of them
// should stay on is re-enabled after it.
func appendAttrDelta(dst []byte, from, to Attr) []byte {
	cur := from
	off := from &^ to
	if off&(AttrBold|AttrDim) != 0 {
		dst = append(dst, ANSIBoldDimOff...)
		cur &^= AttrBold | AttrDim
	}
	if off.Has(AttrItalic) {
		dst = append(dst, ANSIItalicOff...)
		cur &^= AttrItalic
	}
	if off.Has(AttrUnderline) {
		dst = append(dst, ANSIUnderlineOff...)
		cur &^= AttrUnderline
	}
	if off.Has(AttrReverse) {
		dst = append(dst, ANSIReverseOff...)
		cur &^= AttrReverse
	}
	on := to &^ cur
	for _, a := range attrOn {
		if on.Has(a.attr) {
			dst = append(dst, a.seq...)
		}
	}
	return dst
}

// ParseProfile maps a config name to a termenv color profile.
// "auto" inspects the environment.
func ParseProfile(name string) (termenv.Profile, error) {
	switch name {
	case "", "truecolor", "24bit":
		return termenv.TrueColor, nil
	case "auto":
		return termenv.EnvColorProfile(), nil
	case "256":
		return termenv.ANSI256, nil
	case "16", "ansi":
		return termenv.ANSI, nil
	case "ascii", "none":
		return termenv.Ascii, nil
	default:
		return termenv.TrueColor, apperrors.Newf(apperrors.ErrCodeInvalidInput, "unknown color profile %q", name)
	}
}

type sgrKey struct {
	color Color
	bg    bool
}

// sgrCache memoizes color SGR sequences for one diff engine.
type sgrCache struct {
	profile termenv.Profile
	cache   *lru.Cache[sgrKey, string]
}

func newSGRCache(profile termenv.Profile, size int) *sgrCache {
	if size <= 0 {
		size = defaultSGRCacheSz
	}
	cache, err := lru.New[sgrKey, string](size)
	if err != nil {
		// Only returned for non-positive sizes, which are excluded above.
		panic(err)
	}
	return &sgrCache{profile: profile, cache: cache}
}

// color returns the sequence selecting c as foreground or background. The
// result is empty when the profile cannot express colors.
func (s *sgrCache) color(c Color, bg bool) string {
	if c.IsDefault() {
		if s.profile == termenv.Ascii {
			return ""
		}
		if bg {
			return ANSIDefaultBG
		}
		return ANSIDefaultFG
	}

	key := sgrKey{color: c, bg: bg}
	if seq, ok := s.cache.Get(key); ok {
		return seq
	}
	seq := s.build(c, bg)
	s.cache.Add(key, seq)
	return seq
}

func (s *sgrCache) build(c Color, bg bool) string {
	if s.profile == termenv.TrueColor {
		r, g, b := c.RGB255()
		buf := make([]byte, 0, 20)
		buf = append(buf, ANSIEscape...)
		if bg {
			buf = append(buf, "48;2;"...)
		} else {
			buf = append(buf, "38;2;"...)
		}
		buf = strconv.AppendUint(buf, uint64(r), 10)
		buf = append(buf, ';')
		buf = strconv.AppendUint(buf, uint64(g), 10)
		buf = append(buf, ';')
		buf = strconv.AppendUint(buf, uint64(b), 10)
		return string(append(buf, 'm'))
	}

	seq := s.profile.Convert(termenv.RGBColor(c.String())).Sequence(bg)
	if seq == "" {
		return ""
	}
	return ANSIEscape + seq + "m"
}

// Len reports how many sequences are cached.
func (s *sgrCache) Len() int {
	return s.cache.Len()
}
