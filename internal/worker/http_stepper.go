package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/phrazzld/jobtrail-api/internal/batch"
)

// HTTPStepper runs steps remotely through the server's worker route.
type HTTPStepper struct {
	endpoint string
	secret   string
	maxSteps int
	client   *http.Client
}

// NewHTTPStepper targets the full URL of the worker route. A nil client gets
// one with a 2 minute timeout, long enough for a step's artifact build.
func NewHTTPStepper(endpoint, secret string, maxSteps int, client *http.Client) *HTTPStepper {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &HTTPStepper{endpoint: endpoint, secret: secret, maxSteps: maxSteps, client: client}
}

type nextRequest struct {
	MaxSteps int `json:"maxSteps"`
}

// RunNextAvailableStep posts to the worker route and decodes the last step.
func (s *HTTPStepper) RunNextAvailableStep(ctx context.Context) (*batch.StepResult, error) {
	body, err := json.Marshal(nextRequest{MaxSteps: s.maxSteps})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(batch.WorkerSecretHeader, s.secret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call worker route: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("worker route returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var res batch.StepResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode worker response: %w", err)
	}
	return &res, nil
}
