package utils

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// ParseRect parses a rectangle written as "x,y,w,h".
func ParseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid rectangle %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid rectangle %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid rectangle %q: width and height must be positive", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

// FormatRect is the inverse of ParseRect.
func FormatRect(r image.Rectangle) string {
	return fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

// MarginRect returns the rectangle inset from the image border by the
// given fraction of its width and height on every side.
func MarginRect(width, height int, margin float64) image.Rectangle {
	mx := int(float64(width) * margin)
	my := int(float64(height) * margin)
	return image.Rect(mx, my, width-mx, height-my)
}

// ParseHexColor parses "#rrggbb" or "rrggbb". It returns false for anything
// else.
func ParseHexColor(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.NRGBA{}, false
	}
	var rv, gv, bv int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return color.NRGBA{}, false
	}
	//nolint:gosec // G115: Safe conversion for RGB color values
	return color.NRGBA{R: uint8(rv), G: uint8(gv), B: uint8(bv), A: 255}, true
}
