package canvas

import (
	"fmt"
	"strings"
)

// Color is a normalised "#RRGGBB" token.
type Color string

// Swatch is a named palette entry.
type Swatch struct {
	Name  string
	Value Color
}

// Palette is the set of colours offered to painters.
var Palette = []Swatch{
	{Name: "Red", Value: "#EF4444"},
	{Name: "Orange", Value: "#F97316"},
	{Name: "Yellow", Value: "#EAB308"},
	{Name: "Green", Value: "#22C55E"},
	{Name: "Blue", Value: "#3B82F6"},
	{Name: "Purple", Value: "#A855F7"},
	{Name: "Pink", Value: "#EC4899"},
	{Name: "Black", Value: "#000000"},
	{Name: "White", Value: "#FFFFFF"},
}

// NormalizeColor accepts "#RGB" or "#RRGGBB" in any case, with or without
// surrounding whitespace, and returns the upper-case six digit form.
func NormalizeColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return "", fmt.Errorf("%q: %w", s, ErrInvalidColor)
	}
	hex := strings.ToUpper(s[1:])
	for _, r := range hex {
		if !isHexDigit(r) {
			return "", fmt.Errorf("%q: %w", s, ErrInvalidColor)
		}
	}

	switch len(hex) {
	case 3:
		var b strings.Builder
		b.WriteByte('#')
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		return Color(b.String()), nil
	case 6:
		return Color("#" + hex), nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidColor)
	}
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')
}
