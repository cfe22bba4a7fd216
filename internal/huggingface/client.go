// Package huggingface is a minimal client for the HuggingFace
// Inference API feature-extraction pipeline, used as the sentence
// embedding provider.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultModel is the sentence embedding model used when none is configured.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"

// DefaultBaseURL targets the hosted inference router.
const DefaultBaseURL = "https://router.huggingface.co/hf-inference"

const defaultTimeout = 10 * time.Second

// Client calls the hosted feature-extraction endpoint for one model.
// Requests carry a bounded timeout so a slow provider never blocks the
// lexical fallback path indefinitely.
type Client struct {
	baseURL    string
	model      string
	token      string
	httpClient *http.Client
}

// New creates a Client. Empty baseURL, model or timeout fall back to
// the package defaults.
func New(baseURL, model, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Model returns the embedding model identifier. It is stored alongside
// every cached vector so that vectors from a different model are never
// compared against each other.
func (c *Client) Model() string {
	return c.model
}

// embedRequest is the JSON body for the feature-extraction pipeline.
// wait_for_model holds the request while a cold model spins up instead
// of returning 503.
type embedRequest struct {
	Inputs  string       `json:"inputs"`
	Options embedOptions `json:"options"`
}

type embedOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Embed returns the embedding vector for text. Depending on the model,
// the pipeline answers with either a flat vector or a single-element
// batch; both shapes are accepted.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Inputs: text, Options: embedOptions{WaitForModel: true}})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s/pipeline/feature-extraction", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: unexpected status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	return decodeVector(raw)
}

func decodeVector(raw []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat) == 0 {
			return nil, fmt.Errorf("embed: empty vector")
		}
		return flat, nil
	}

	var nested [][]float32
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 || len(nested[0]) == 0 {
			return nil, fmt.Errorf("embed: empty vector")
		}
		return nested[0], nil
	}

	return nil, fmt.Errorf("embed: unrecognized response shape: %s", truncate(raw, 200))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
