package extraction

import (
	"fmt"
	"os/exec"
	"strings"
)

// TesseractCLI runs the tesseract binary installed on the host. Keeping
// the binding behind OCRClient means tests and deployments without the
// binary swap in a mock or run with the capability disabled.
type TesseractCLI struct {
	binary string
	lang   string
	path   string
}

// NewTesseractCLI creates a client for the tesseract binary. lang follows
// tesseract's code convention, e.g. "por" for Brazilian documents.
func NewTesseractCLI(lang string) (*TesseractCLI, error) {
	binary, err := exec.LookPath("tesseract")
	if err != nil {
		return nil, fmt.Errorf("tesseract binary not found: %w", err)
	}
	if lang == "" {
		lang = "por"
	}
	return &TesseractCLI{binary: binary, lang: lang}, nil
}

// SetImage records the image to read on the next Text call
func (t *TesseractCLI) SetImage(path string) error {
	t.path = path
	return nil
}

// Text runs OCR over the configured image and returns the raw text
func (t *TesseractCLI) Text() (string, error) {
	if t.path == "" {
		return "", fmt.Errorf("no image set")
	}
	// "stdout" makes tesseract print instead of writing an output file
	out, err := exec.Command(t.binary, t.path, "stdout", "-l", t.lang).Output()
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Close releases the client. The CLI holds no resources but the method
// keeps TesseractCLI interchangeable with library-backed clients.
func (t *TesseractCLI) Close() error {
	t.path = ""
	return nil
}
