// Package classify implements the capture-directory classification pipeline
// and the classifier client boundary.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// BBox is a detected bounding box in frame pixel coordinates.
type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Result is one classifier verdict for one frame.
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Detected   bool    `json:"detected"`
	BBox       *BBox   `json:"bbox,omitempty"`
}

// Classifier is the opaque inference boundary: a frame in, a verdict out.
type Classifier interface {
	Detect(ctx context.Context, img []byte, path string) (*Result, error)
}

// HTTPClassifier posts frames to a local inference server and decodes its
// JSON verdict. The server contract is a POST of raw JPEG bytes with the
// originating filename as a query parameter.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClassifier creates a client for the given detect endpoint.
func NewHTTPClassifier(endpoint string) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Detect classifies one frame.
func (c *HTTPClassifier) Detect(ctx context.Context, img []byte, path string) (*Result, error) {
	u := c.endpoint + "?filename=" + url.QueryEscape(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("building classify request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifying %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned %s for %s", resp.Status, path)
	}
	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding classifier response: %w", err)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("classifier confidence %v out of [0,1]", result.Confidence)
	}
	return &result, nil
}

// StubClassifier returns a fixed verdict; used in dev mode when no inference
// server is running.
type StubClassifier struct {
	result Result
}

// NewStubClassifier creates a stub that always answers with the given
// verdict.
func NewStubClassifier(result Result) *StubClassifier {
	return &StubClassifier{result: result}
}

// Detect returns the canned verdict.
func (c *StubClassifier) Detect(ctx context.Context, img []byte, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := c.result
	return &r, nil
}
