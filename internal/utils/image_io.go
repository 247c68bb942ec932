package utils

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/trimap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// MaskSuffix marks a mask sidecar next to an input image ("photo.mask.png").
const MaskSuffix = ".mask.png"

// IsSupportedImage reports whether the path is an input image with a
// supported extension. Mask sidecars are not input images.
func IsSupportedImage(path string) bool {
	return hasSupportedExt(path) && !strings.HasSuffix(strings.ToLower(path), MaskSuffix)
}

func hasSupportedExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// MaskSidecarPath returns the mask file that belongs to an input image.
func MaskSidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + MaskSuffix
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file, returning the image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		err := &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
		return nil, ImageMetadata{}, err
	}
	if !hasSupportedExt(path) {
		err := &ImageProcessingError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		err = &ImageProcessingError{Operation: "load", Err: err}
		return nil, ImageMetadata{}, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing image file: %v\n", err)
		}
	}()

	fi, statErr := f.Stat()
	if statErr != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: statErr}
	}

	img, format, err := DecodeImage(f)
	if err != nil {
		return nil, ImageMetadata{}, err
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	return img, meta, nil
}

// DecodeImage decodes any registered image format from r.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: err}
	}
	return img, format, nil
}

// EncodeImage writes img to w in the given format (png, jpeg, bmp or tiff).
func EncodeImage(w io.Writer, img image.Image, format string) error {
	var err error
	switch strings.ToLower(format) {
	case "png", "":
		err = png.Encode(w, img)
	case "jpg", "jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 92})
	case "bmp":
		err = bmp.Encode(w, img)
	case "tif", "tiff":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	return nil
}

// SaveImage encodes img into path, picking the format from the extension.
func SaveImage(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &ImageProcessingError{Operation: "save", Err: err}
		}
	}
	f, err := os.Create(path) //nolint:gosec // G304: Writing to user-provided output path is expected
	if err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if err := EncodeImage(f, img, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}

// MaskFromImage interprets a mask image. Masks whose grey levels are all in
// 0..3 are read as label maps; anything else is treated as a black/white
// mask where bright pixels are probable foreground.
func MaskFromImage(img image.Image) *trimap.Trimap {
	if t, err := trimap.FromGray(img); err == nil {
		return t
	}
	return trimap.FromBinary(img)
}

// LoadMask reads a mask file, see MaskFromImage.
func LoadMask(path string) (*trimap.Trimap, error) {
	img, _, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	return MaskFromImage(img), nil
}

// SaveMask writes a segmentation result: the 4-state label map when labels
// is set, otherwise a 0/255 binary mask.
func SaveMask(path string, t *trimap.Trimap, labels bool) error {
	if labels {
		return SaveImage(path, t.ToGray())
	}
	return SaveImage(path, t.Binary())
}
