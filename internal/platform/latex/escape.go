package latex

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var typography = strings.NewReplacer(
	"\u00a0", " ",
	"\u2014", "--",
	"\u2013", "-",
	"\u2018", "'",
	"\u2019", "'",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2026", "...",
	"\u2022", "-",
	"\r\n", "\n",
)

var specials = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	"&", `\&`,
	"%", `\%`,
	"$", `\$`,
	"#", `\#`,
	"_", `\_`,
	"{", `\{`,
	"}", `\}`,
	"~", `\textasciitilde{}`,
	"^", `\textasciicircum{}`,
)

// Escape makes arbitrary text safe to interpolate into a LaTeX document.
// Control characters become spaces and characters outside the Basic
// Multilingual Plane (emoji) are dropped.
func Escape(s string) string {
	s = norm.NFKC.String(s)
	s = typography.Replace(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == unicode.ReplacementChar || r > 0xFFFF:
			return -1
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, s)
	return specials.Replace(s)
}
