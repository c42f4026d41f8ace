package extraction

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOCRClient is a mock implementation of OCRClient
type MockOCRClient struct {
	mock.Mock
}

func (m *MockOCRClient) SetImage(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockOCRClient) Text() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockOCRClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func writeTestImage(t *testing.T) string {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 220})
			} else {
				img.SetGray(x, y, color.Gray{Y: 30})
			}
		}
	}

	path := filepath.Join(t.TempDir(), "doc.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestExtractUnavailable(t *testing.T) {
	engine := NewEngine(nil, true)
	_, err := engine.Extract("whatever.png")
	assert.ErrorIs(t, err, ErrUnavailable)

	var nilEngine *Engine
	assert.False(t, nilEngine.Available())
}

func TestExtractWithMockClient(t *testing.T) {
	path := writeTestImage(t)

	client := new(MockOCRClient)
	client.On("SetImage", mock.AnythingOfType("string")).Return(nil)
	client.On("Text").Return("NOME: MARIA\n", nil)

	engine := NewEngine(client, false)
	text, err := engine.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "NOME: MARIA\n", text)
	client.AssertCalled(t, "SetImage", path)
}

func TestExtractPreprocessFallsBackOnFailure(t *testing.T) {
	// a path that cannot be decoded: preprocessing fails, extraction
	// still runs against the original file
	path := filepath.Join(t.TempDir(), "doc.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	client := new(MockOCRClient)
	client.On("SetImage", path).Return(nil)
	client.On("Text").Return("texto", nil)

	engine := NewEngine(client, true)
	text, err := engine.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "texto", text)
}

func TestPreprocessImage(t *testing.T) {
	path := writeTestImage(t)

	cleaned, err := PreprocessImage(path)
	require.NoError(t, err)
	defer os.Remove(cleaned)

	f, err := os.Open(cleaned)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)

	// binarized output holds only pure black and pure white
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			assert.True(t, g.Y == 0 || g.Y == 255, "pixel (%d,%d) = %d", x, y, g.Y)
		}
	}
}
