package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/jobtrail-api/internal/config"
	"google.golang.org/genai"
)

// ContentGenerator is the slice of the genai client the tailor uses.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

const defaultPrompt = `You are tailoring a job application.

Role: {{.JobTitle}}
Company: {{.Company}}

Job description:
{{.Description}}

Return only a JSON object with this shape:
{"cvSummary": string, "cover": {"paragraphOne": string, "paragraphTwo": string, "paragraphThree": string}}

The cvSummary is a three sentence professional summary aimed at this role.
The cover paragraphs introduce the candidate, match their experience to the
role's responsibilities, and close with a call to action. Use plain text only.`

// Tailor generates application content with Gemini.
type Tailor struct {
	logger    *slog.Logger
	config    config.LLMConfig
	prompt    *template.Template
	generator ContentGenerator
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewTailor creates a Tailor backed by the Gemini API.
func NewTailor(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Tailor, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return NewTailorWithGenerator(logger, cfg, client.Models)
}

// NewTailorWithGenerator creates a Tailor over any ContentGenerator.
func NewTailorWithGenerator(logger *slog.Logger, cfg config.LLMConfig, gen ContentGenerator) (*Tailor, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: content generator cannot be nil", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Tailor{
		logger:    logger.With("component", "gemini_tailor"),
		config:    cfg,
		prompt:    template.Must(template.New("tailor").Parse(defaultPrompt)),
		generator: gen,
		sleep:     sleepContext,
	}, nil
}

// TailorApplication asks the model for a resume summary and cover letter
// tailored to the job.
func (t *Tailor) TailorApplication(ctx context.Context, in TailorInput) (*TailoredContent, error) {
	prompt, err := t.createPrompt(in)
	if err != nil {
		return nil, err
	}
	return t.callWithRetry(ctx, prompt)
}

func (t *Tailor) createPrompt(in TailorInput) (string, error) {
	if strings.TrimSpace(in.JobTitle) == "" {
		return "", ErrEmptyJob
	}
	if in.Company == "" {
		in.Company = "the company"
	}

	var buf bytes.Buffer
	if err := t.prompt.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callWithRetry calls the model with exponential backoff and jitter.
// Blocked content and unparseable output are permanent and returned at once.
func (t *Tailor) callWithRetry(ctx context.Context, prompt string) (*TailoredContent, error) {
	maxRetries := t.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}
	baseDelay := t.config.RetryDelaySeconds
	if baseDelay < 1 {
		baseDelay = 2
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		out, err := t.call(ctx, prompt)
		if err == nil {
			t.logger.InfoContext(ctx, "gemini call succeeded", "attempt", attempt+1)
			return out, nil
		}

		if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrInvalidResponse) {
			t.logger.WarnContext(ctx, "permanent gemini error, not retrying", "error", err)
			return nil, err
		}
		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * [0.5, 1.0)
		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt)) *
			(0.5 + rng.Float64()*0.5) * float64(time.Second))
		t.logger.InfoContext(ctx, "retrying gemini call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		if err := t.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
		}
	}
}

func (t *Tailor) call(ctx context.Context, prompt string) (*TailoredContent, error) {
	resp, err := t.generator.GenerateContent(ctx, t.config.ModelName,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, err
	}

	switch {
	case resp == nil || len(resp.Candidates) == 0:
		return nil, fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return nil, ErrContentBlocked
	case resp.Candidates[0].Content == nil:
		return nil, fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	return parseTailoredContent(text.String())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
