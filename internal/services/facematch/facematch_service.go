package facematch

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnavailable is returned when no face-matching capability is deployed.
// Downstream the result stays "not evaluated", which must never be read as
// a failed match.
var ErrUnavailable = errors.New("face matching capability unavailable")

// MatchThreshold is the fixed confidence cutoff for declaring a match
const MatchThreshold = 60

// FaceClient detects faces in an image and returns one embedding per
// detected face. Interface so deployments can plug any model and tests can
// use canned vectors.
type FaceClient interface {
	Embeddings(path string) ([][]float64, error)
}

// Result is the outcome of comparing a selfie against a document photo
type Result struct {
	Match      bool   `json:"match"`
	Confidence int    `json:"confidence"` // 0..100
	Reason     string `json:"reason,omitempty"`
}

// Matcher compares a live selfie against the document's embedded photo
type Matcher struct {
	client FaceClient
}

// NewMatcher creates a matcher. A nil client means the capability is
// absent; Match then returns ErrUnavailable.
func NewMatcher(client FaceClient) *Matcher {
	return &Matcher{client: client}
}

// Available reports whether face matching can run at all
func (m *Matcher) Available() bool {
	return m != nil && m.client != nil
}

// Match compares the selfie at selfiePath with the document photo at
// docPath. Zero detected faces in either image yields match=false with
// confidence 0 and an explanatory reason rather than an error.
func (m *Matcher) Match(selfiePath, docPath string) (Result, error) {
	if !m.Available() {
		return Result{}, ErrUnavailable
	}

	selfieFaces, err := m.client.Embeddings(selfiePath)
	if err != nil {
		return Result{}, fmt.Errorf("error analyzing selfie: %w", err)
	}
	if len(selfieFaces) == 0 {
		return Result{Match: false, Confidence: 0, Reason: "no face detected in selfie"}, nil
	}

	docFaces, err := m.client.Embeddings(docPath)
	if err != nil {
		return Result{}, fmt.Errorf("error analyzing document photo: %w", err)
	}
	if len(docFaces) == 0 {
		return Result{Match: false, Confidence: 0, Reason: "no face detected in document photo"}, nil
	}

	distance := cosineDistance(selfieFaces[0], docFaces[0])
	confidence := int(math.Round((1 - distance) * 100))
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return Result{
		Match:      confidence >= MatchThreshold,
		Confidence: confidence,
	}, nil
}

// cosineDistance returns 1 - cosine similarity, clamped to [0,2].
// Degenerate embeddings (zero vector, length mismatch) count as maximally
// distant.
func cosineDistance(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
