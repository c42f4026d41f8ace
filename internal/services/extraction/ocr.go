package extraction

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnavailable is returned when no OCR capability is configured. Callers
// degrade the case to manual review instead of failing the submission.
var ErrUnavailable = errors.New("ocr capability unavailable")

// OCRClient is the seam to the OCR engine (Tesseract in production). Kept
// as an interface so tests can substitute a canned client.
type OCRClient interface {
	SetImage(path string) error
	Text() (string, error)
	Close() error
}

// Engine runs preprocessing and text extraction over document images
type Engine struct {
	client     OCRClient
	preprocess bool
}

// NewEngine creates an extraction engine. A nil client means the capability
// is absent in this deployment; Extract then returns ErrUnavailable.
func NewEngine(client OCRClient, preprocess bool) *Engine {
	return &Engine{client: client, preprocess: preprocess}
}

// Available reports whether OCR can run at all
func (e *Engine) Available() bool {
	return e != nil && e.client != nil
}

// Extract returns the raw OCR text of the document at path. Preprocessing
// is best effort: any preprocessing failure falls back to the raw image and
// never fails the extraction itself.
func (e *Engine) Extract(path string) (string, error) {
	if !e.Available() {
		return "", ErrUnavailable
	}

	imgPath := path
	if e.preprocess && isRasterImage(path) {
		if cleaned, err := PreprocessImage(path); err == nil {
			imgPath = cleaned
			defer os.Remove(cleaned)
		}
	}

	if err := e.client.SetImage(imgPath); err != nil {
		return "", fmt.Errorf("error loading image for ocr: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("error running ocr: %w", err)
	}
	return text, nil
}

// isRasterImage reports whether the file is a decodable raster format.
// PDFs go to the OCR engine as-is.
func isRasterImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// PreprocessImage denoises and binarizes a document photo so the OCR engine
// sees high-contrast text. Returns the path of a temporary PNG the caller
// must remove.
func PreprocessImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("error decoding image: %w", err)
	}

	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	var total uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(src.At(x, y)).(color.Gray)
			gray.SetGray(x, y, g)
			total += uint64(g.Y)
		}
	}

	pixels := uint64(bounds.Dx() * bounds.Dy())
	if pixels == 0 {
		return "", errors.New("empty image")
	}

	// Global mean threshold: coarse but cheap, and fully deterministic
	threshold := uint8(total / pixels)
	bin := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y > threshold {
				bin.SetGray(x, y, color.Gray{Y: 255})
			} else {
				bin.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}

	out, err := os.CreateTemp("", "treinacnh-preproc-*.png")
	if err != nil {
		return "", fmt.Errorf("error creating temp file: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, bin); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("error encoding preprocessed image: %w", err)
	}
	return out.Name(), nil
}
