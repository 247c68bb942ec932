package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	TinySize   = ImageSize{64, 48}
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
)

// Shape is the outline of the foreground object in a generated scene.
type Shape int

const (
	ShapeRect Shape = iota
	ShapeEllipse
)

// SceneConfig holds configuration for generating a synthetic
// foreground/background scene.
type SceneConfig struct {
	Size       ImageSize
	Background color.NRGBA
	Foreground color.NRGBA
	Object     image.Rectangle // bounding box of the object
	Shape      Shape
	Noise      float64 // standard deviation of per-channel Gaussian noise
	Blur       float64 // Gaussian blur sigma softening the object edge
	Seed       uint64
}

// DefaultSceneConfig returns a small scene with a bright ellipse on a dark,
// slightly noisy background.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Size:       TinySize,
		Background: color.NRGBA{R: 30, G: 60, B: 40, A: 255},
		Foreground: color.NRGBA{R: 220, G: 180, B: 60, A: 255},
		Object:     image.Rect(16, 12, 48, 36),
		Shape:      ShapeEllipse,
		Noise:      4,
		Seed:       1,
	}
}

// GenerateScene renders the scene and returns it with its ground-truth mask
// (255 inside the object).
func GenerateScene(config SceneConfig) (*image.NRGBA, *image.Gray) {
	w, h := config.Size.Width, config.Size.Height
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	truth := image.NewGray(img.Bounds())
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	for y := range h {
		for x := range w {
			if inShape(config, x, y) {
				img.SetNRGBA(x, y, config.Foreground)
				truth.Pix[y*truth.Stride+x] = 255
			}
		}
	}

	if config.Blur > 0 {
		img = imaging.Blur(img, config.Blur)
	}
	if config.Noise > 0 {
		addNoise(img, config.Noise, config.Seed)
	}
	return img, truth
}

func inShape(config SceneConfig, x, y int) bool {
	r := config.Object
	if !image.Pt(x, y).In(r) {
		return false
	}
	if config.Shape == ShapeRect {
		return true
	}
	cx := float64(r.Min.X+r.Max.X) / 2
	cy := float64(r.Min.Y+r.Max.Y) / 2
	rx := float64(r.Dx()) / 2
	ry := float64(r.Dy()) / 2
	dx := (float64(x) + 0.5 - cx) / rx
	dy := (float64(y) + 0.5 - cy) / ry
	return dx*dx+dy*dy <= 1
}

// addNoise perturbs every colour channel with deterministic Gaussian noise.
func addNoise(img *image.NRGBA, sigma float64, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // G404: test data only
	for i := 0; i < len(img.Pix); i += 4 {
		for c := range 3 {
			v := float64(img.Pix[i+c]) + rng.NormFloat64()*sigma
			img.Pix[i+c] = uint8(math.Max(0, math.Min(255, math.Round(v))))
		}
	}
}

// BlockImage creates a w x h image filled with bg and a block filled with fg.
func BlockImage(w, h int, block image.Rectangle, fg, bg color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	draw.Draw(img, block, &image.Uniform{fg}, image.Point{}, draw.Src)
	return img
}

// CreateTestImage creates a simple test image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// MaskIoU returns the intersection over union of the bright (>= 128) pixels
// of two masks. Two empty masks have an IoU of 1.
func MaskIoU(a, b *image.Gray) float64 {
	if a.Bounds().Size() != b.Bounds().Size() {
		return 0
	}
	inter, union := 0, 0
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	for y := range h {
		for x := range w {
			pa := a.Pix[y*a.Stride+x] >= 128
			pb := b.Pix[y*b.Stride+x] >= 128
			if pa && pb {
				inter++
			}
			if pa || pb {
				union++
			}
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// SaveImage saves an image to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	// Ensure directory exists
	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	err = png.Encode(file, img)
	require.NoError(t, err, "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := LoadImageFile(path)
	require.NoError(t, err)
	return img
}

// LoadImageFile loads an image from the specified path (non-testing version).
func LoadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: Opening user-provided image file is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}

// GenerateTestImages writes the standard scenes and their ground-truth masks
// into the testdata directory.
func GenerateTestImages(t *testing.T) {
	t.Helper()

	dir := GetTestImageDir(t, "scenes")
	require.NoError(t, EnsureDir(dir))

	for _, s := range StandardScenes() {
		img, truth := GenerateScene(s.Config)
		SaveImage(t, img, filepath.Join(dir, s.Name+".png"))
		SaveImage(t, truth, filepath.Join(dir, s.Name+".truth.png"))
	}
}

// NamedScene pairs a scene configuration with a file name.
type NamedScene struct {
	Name   string
	Config SceneConfig
}

// StandardScenes returns the scenes used by fixtures and integration tests.
func StandardScenes() []NamedScene {
	ellipse := DefaultSceneConfig()

	block := DefaultSceneConfig()
	block.Shape = ShapeRect
	block.Noise = 0

	soft := DefaultSceneConfig()
	soft.Size = SmallSize
	soft.Object = image.Rect(80, 60, 240, 180)
	soft.Blur = 1.5
	soft.Noise = 8
	soft.Seed = 7

	return []NamedScene{
		{Name: "ellipse", Config: ellipse},
		{Name: "block", Config: block},
		{Name: "soft_ellipse", Config: soft},
	}
}
