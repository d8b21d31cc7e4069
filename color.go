package wutag

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a tag's display color. It round-trips to the single TEXT column
// the registry stores it in: "default", "ansi:<n>", or "rgb:<r>,<g>,<b>".
//
// Grounded on wutag_core/color.rs's three representations (named ANSI
// code, RGB truecolor, and a default sentinel); the interactive palette
// and terminal rendering those functions also do is TUI/pretty-printing
// territory and stays out of the core per spec §1.
type Color struct {
	kind colorKind
	ansi uint8
	r, g, b uint8
}

type colorKind uint8

const (
	colorDefault colorKind = iota
	colorANSI
	colorRGB
)

// DefaultColor is the palette entry used when a tag is created without an
// explicit color.
var DefaultColor = Color{kind: colorDefault}

// NewANSIColor builds a Color from an ANSI SGR foreground code (30-37,
// 90-97), validated against the codes wutag_core/color.rs recognizes.
func NewANSIColor(code uint8) (Color, error) {
	switch {
	case code >= 30 && code <= 37, code >= 90 && code <= 97:
		return Color{kind: colorANSI, ansi: code}, nil
	default:
		return Color{}, &Error{Kind: ErrInvalidColor, Op: "NewANSIColor", Message: fmt.Sprintf("unrecognized ANSI code %d", code)}
	}
}

// NewRGBColor builds a truecolor Color.
func NewRGBColor(r, g, b uint8) Color {
	return Color{kind: colorRGB, r: r, g: g, b: b}
}

// ParseColor parses the registry's on-disk encoding of a Color.
func ParseColor(s string) (Color, error) {
	switch {
	case s == "" || s == "default":
		return DefaultColor, nil
	case strings.HasPrefix(s, "ansi:"):
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "ansi:"), 10, 8)
		if err != nil {
			return Color{}, &Error{Kind: ErrInvalidColor, Op: "ParseColor", Inner: err}
		}
		return NewANSIColor(uint8(n))
	case strings.HasPrefix(s, "rgb:"):
		parts := strings.Split(strings.TrimPrefix(s, "rgb:"), ",")
		if len(parts) != 3 {
			return Color{}, &Error{Kind: ErrInvalidColor, Op: "ParseColor", Message: "rgb color requires 3 components"}
		}
		var v [3]uint8
		for i, p := range parts {
			n, err := strconv.ParseUint(p, 10, 8)
			if err != nil {
				return Color{}, &Error{Kind: ErrInvalidColor, Op: "ParseColor", Inner: err}
			}
			v[i] = uint8(n)
		}
		return NewRGBColor(v[0], v[1], v[2]), nil
	default:
		return Color{}, &Error{Kind: ErrInvalidColor, Op: "ParseColor", Message: fmt.Sprintf("unrecognized color %q", s)}
	}
}

// String encodes the Color back into the registry's on-disk form.
func (c Color) String() string {
	switch c.kind {
	case colorANSI:
		return fmt.Sprintf("ansi:%d", c.ansi)
	case colorRGB:
		return fmt.Sprintf("rgb:%d,%d,%d", c.r, c.g, c.b)
	default:
		return "default"
	}
}
