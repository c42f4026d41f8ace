package facematch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPFaceClient calls an external embedding service. The service takes
// an image and returns one embedding vector per detected face; all face
// detection and model concerns live on its side.
type HTTPFaceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPFaceClient creates a client for the embedding service at baseURL
func NewHTTPFaceClient(baseURL string) *HTTPFaceClient {
	return &HTTPFaceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type embeddingsResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embeddings uploads the image and returns one vector per detected face.
// An empty slice means the service found no faces, which is a valid
// answer, not an error.
func (c *HTTPFaceClient) Embeddings(path string) ([][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/embeddings", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}

	var out embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid embedding service response: %w", err)
	}
	return out.Embeddings, nil
}
