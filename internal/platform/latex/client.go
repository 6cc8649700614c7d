// Package latex renders application documents and compiles them to PDF
// through the external rendering service.
package latex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrNotConfigured is returned when the rendering service URL or token is missing.
var ErrNotConfigured = errors.New("LATEX_RENDER_URL or LATEX_RENDER_TOKEN missing")

// RenderError reports a non-success response from the rendering service.
type RenderError struct {
	StatusCode int
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("LATEX_RENDER_FAILED_%d", e.StatusCode)
}

// Client compiles LaTeX sources into hosted PDFs.
type Client struct {
	url    string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// NewClient returns a client for the rendering service at url.
func NewClient(url, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    url,
		token:  token,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With("component", "latex_client"),
	}
}

type compileRequest struct {
	Tex string `json:"tex"`
}

type compileResponse struct {
	PDFURL string `json:"pdfUrl"`
}

// Compile submits tex and returns the URL of the compiled PDF.
func (c *Client) Compile(ctx context.Context, tex string) (string, error) {
	if c.url == "" || c.token == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(compileRequest{Tex: tex})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call render service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &RenderError{StatusCode: resp.StatusCode}
	}

	var out compileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode render response: %w", err)
	}
	if out.PDFURL == "" {
		return "", errors.New("render service returned no pdfUrl")
	}

	c.logger.DebugContext(ctx, "document compiled",
		"tex_bytes", len(tex),
		"duration_ms", time.Since(start).Milliseconds())
	return out.PDFURL, nil
}
