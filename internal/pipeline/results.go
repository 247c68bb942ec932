package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/grabcut"
	"github.com/MeKo-Tech/cutout/internal/trimap"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/MeKo-Tech/cutout/internal/visualize"
)

// Output formats.
const (
	FormatPNG     = "png"     // binary mask
	FormatTrimap  = "trimap"  // 4-state label image
	FormatJSON    = "json"    // Summary
	FormatOverlay = "overlay" // tinted foreground over the input
	FormatCutout  = "cutout"  // foreground with transparent background
)

// Formats lists every output format.
var Formats = []string{FormatPNG, FormatTrimap, FormatJSON, FormatOverlay, FormatCutout}

// ValidateFormat accepts the empty string (meaning png) and every entry of
// Formats.
func ValidateFormat(format string) error {
	if format == "" || slices.Contains(Formats, format) {
		return nil
	}
	return fmt.Errorf("invalid output format: %s (must be one of: %s)", format, strings.Join(Formats, ", "))
}

// ContentType returns the MIME type of a rendered format.
func ContentType(format string) string {
	if format == FormatJSON {
		return "application/json"
	}
	return "image/png"
}

// Extension returns the file suffix used when saving a format next to its
// input, e.g. "photo_cutout.png".
func Extension(format string) string {
	switch format {
	case FormatJSON:
		return ".json"
	case "", FormatPNG:
		return "_mask.png"
	default:
		return "_" + format + ".png"
	}
}

// Summarize describes out as JSON-friendly data.
func Summarize(out *Output, simplify float64) (*Summary, error) {
	if out == nil || out.Result == nil || out.Result.Trimap == nil {
		return nil, errors.New("nil result")
	}
	res := out.Result
	t := res.Trimap
	mask := res.Mask()

	s := &Summary{
		Name:             out.Name,
		Width:            t.Width,
		Height:           t.Height,
		Iterations:       res.Iterations,
		Solver:           out.Solver,
		Beta:             res.Beta,
		Energies:         res.Energies,
		ForegroundPixels: t.ForegroundCount(),
		Labels:           make(map[string]int, 4),
		Shape:            visualize.Describe(mask, simplify),
	}
	if s.Energies == nil {
		s.Energies = []grabcut.Energy{}
	}
	if n := t.Width * t.Height; n > 0 {
		s.Coverage = float64(s.ForegroundPixels) / float64(n)
	}
	for l := trimap.DefiniteBackground; l <= trimap.ProbableForeground; l++ {
		s.Labels[l.String()] = t.Count(l)
	}
	if out.Hint.Mask != nil {
		s.Mode = grabcut.ModeInitWithMask.String()
	} else {
		s.Mode = grabcut.ModeInitWithRect.String()
		s.Rect = utils.FormatRect(out.Hint.Rect)
	}
	s.Processing.TotalNs = res.Duration.Nanoseconds()
	return s, nil
}

// ToJSON serialises a summary of out to pretty JSON.
func ToJSON(out *Output, simplify float64) ([]byte, error) {
	s, err := Summarize(out, simplify)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

// RenderImage returns the image for an image format.
func RenderImage(out *Output, format string, opts RenderOptions) (image.Image, error) {
	if out == nil || out.Result == nil || out.Result.Trimap == nil {
		return nil, errors.New("nil result")
	}
	switch format {
	case "", FormatPNG:
		return out.Result.Mask(), nil
	case FormatTrimap:
		return out.Result.Trimap.ToGray(), nil
	case FormatOverlay:
		ov := opts.Overlay
		if out.Hint.Mask == nil {
			ov.Hint = out.Hint.Rect
		}
		return visualize.RenderOverlay(out.Source, out.Result.Mask(), ov), nil
	case FormatCutout:
		return visualize.Cutout(out.Source, out.Result.Mask(), opts.Feather, opts.Crop), nil
	default:
		return nil, fmt.Errorf("format %q is not an image format", format)
	}
}

// Render writes out in format to w.
func Render(w io.Writer, out *Output, format string, opts RenderOptions) error {
	if err := ValidateFormat(format); err != nil {
		return err
	}
	if format == FormatJSON {
		b, err := ToJSON(out, opts.Simplify)
		if err != nil {
			return err
		}
		_, err = w.Write(append(b, '\n'))
		return err
	}
	img, err := RenderImage(out, format, opts)
	if err != nil {
		return err
	}
	return utils.EncodeImage(w, img, "png")
}

// Render writes out in the pipeline's configured format.
func (p *Pipeline) Render(w io.Writer, out *Output) error {
	return Render(w, out, p.cfg.Render.Format, p.cfg.Render)
}

// Save renders out in format into path, creating parent directories.
func Save(path string, out *Output, format string, opts RenderOptions) error {
	var buf bytes.Buffer
	if err := Render(&buf, out, format, opts); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// OutputPath returns where the result for input is stored in dir (next to
// the input when dir is empty).
func OutputPath(input, dir, format string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + Extension(format)
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base)
}

// IsOutputFile reports whether path looks like a file written by Save, so
// directory scans do not pick up earlier results as inputs.
func IsOutputFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, f := range Formats {
		if f != FormatJSON && strings.HasSuffix(name, Extension(f)) {
			return true
		}
	}
	return false
}
