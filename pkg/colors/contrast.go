// Package colors picks legible sidebar colors: WCAG contrast checks against
// the row background and defaults that suit the terminal's background.
package colors

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	black = "#000000"
	white = "#ffffff"
)

// MinContrast is the WCAG AA ratio for normal text.
const MinContrast = 4.5

func parse(hex string) (colorful.Color, bool) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}

// Luminance is the WCAG relative luminance of hex, 0 for black through 1 for
// white. Unparseable colors count as black.
func Luminance(hex string) float64 {
	c, ok := parse(hex)
	if !ok {
		return 0
	}
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// ContrastRatio is the WCAG contrast ratio between two colors, 1 to 21.
func ContrastRatio(fg, bg string) float64 {
	l1, l2 := Luminance(fg), Luminance(bg)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}

// IsLight reports whether hex is closer to white than black.
func IsLight(hex string) bool {
	return Luminance(hex) > 0.5
}

// TextOn returns black or white, whichever reads better on bg.
func TextOn(bg string) string {
	if ContrastRatio(black, bg) >= ContrastRatio(white, bg) {
		return black
	}
	return white
}

// EnsureContrast moves fg toward white or black in steps until it reaches
// minRatio against bg, falling back to TextOn(bg). An empty or invalid fg is
// replaced with TextOn(bg); an invalid bg leaves fg alone.
func EnsureContrast(fg, bg string, minRatio float64) string {
	bgc, ok := parse(bg)
	if !ok {
		return fg
	}
	fgc, ok := parse(fg)
	if !ok {
		return TextOn(bg)
	}
	if ContrastRatio(fg, bg) >= minRatio {
		return fg
	}

	target, _ := parse(black)
	if Luminance(fg) > Luminance(bg) {
		target, _ = parse(white)
	}
	for step := 0.1; step <= 1.0; step += 0.1 {
		adjusted := fgc.BlendRgb(target, step).Clamped().Hex()
		if ContrastRatio(adjusted, bgc.Hex()) >= minRatio {
			return adjusted
		}
	}
	return TextOn(bg)
}

// Lighten moves hex toward white by amount (0 to 1).
func Lighten(hex string, amount float64) string {
	c, ok := parse(hex)
	if !ok {
		return hex
	}
	w, _ := parse(white)
	return c.BlendRgb(w, amount).Clamped().Hex()
}

// Darken moves hex toward black by amount (0 to 1).
func Darken(hex string, amount float64) string {
	c, ok := parse(hex)
	if !ok {
		return hex
	}
	b, _ := parse(black)
	return c.BlendRgb(b, amount).Clamped().Hex()
}
