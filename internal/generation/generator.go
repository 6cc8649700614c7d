package generation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/platform/gemini"
	"github.com/phrazzld/jobtrail-api/internal/platform/latex"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

// Tailor produces tailored application content for a job.
type Tailor interface {
	TailorApplication(ctx context.Context, in gemini.TailorInput) (*gemini.TailoredContent, error)
}

// Compiler turns a LaTeX source into a hosted PDF URL.
type Compiler interface {
	Compile(ctx context.Context, tex string) (string, error)
}

// Builder implements batch.ArtifactBuilder.
type Builder struct {
	tailor   Tailor
	compiler Compiler
	apps     store.ApplicationStore
	logger   *slog.Logger
	now      func() time.Time
}

var _ batch.ArtifactBuilder = (*Builder)(nil)

// NewBuilder wires the build pipeline. A nil tailor or compiler makes every
// build fail with the matching unavailable error.
func NewBuilder(tailor Tailor, compiler Compiler, apps store.ApplicationStore, l *slog.Logger) *Builder {
	if l == nil {
		l = slog.Default()
	}
	return &Builder{
		tailor:   tailor,
		compiler: compiler,
		apps:     apps,
		logger:   l.With("component", "artifact_builder"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Build tailors, renders and compiles the resume and cover letter for job,
// then upserts the user's application with both PDF URLs.
func (b *Builder) Build(ctx context.Context, userID uuid.UUID, job *domain.Job) (*batch.Artifacts, error) {
	if b.tailor == nil {
		return nil, ErrTailorUnavailable
	}
	if b.compiler == nil {
		return nil, ErrRendererUnavailable
	}

	log := logger.FromContextOrDefault(ctx, b.logger).With("job_id", job.ID)
	start := b.now()

	company := "the company"
	if job.Company != nil && *job.Company != "" {
		company = *job.Company
	}
	description := ""
	if job.Description != nil {
		description = *job.Description
	}

	content, err := b.tailor.TailorApplication(ctx, gemini.TailorInput{
		JobTitle:    job.Title,
		Company:     company,
		Description: description,
	})
	if err != nil {
		return nil, &StageError{Stage: "tailor", Err: err}
	}

	resumeTex, err := latex.RenderResume(latex.ResumeInput{
		Role:    job.Title,
		Company: company,
		Summary: content.CVSummary,
	})
	if err != nil {
		return nil, &StageError{Stage: "render_resume", Err: err}
	}
	resumeURL, err := b.compiler.Compile(ctx, resumeTex)
	if err != nil {
		return nil, &StageError{Stage: "compile_resume", Err: err}
	}

	coverTex, err := latex.RenderCoverLetter(latex.CoverInput{
		Role:           job.Title,
		Company:        company,
		Date:           start.Format("2 January 2006"),
		ParagraphOne:   content.Cover.ParagraphOne,
		ParagraphTwo:   content.Cover.ParagraphTwo,
		ParagraphThree: content.Cover.ParagraphThree,
	})
	if err != nil {
		return nil, &StageError{Stage: "render_cover", Err: err}
	}
	coverURL, err := b.compiler.Compile(ctx, coverTex)
	if err != nil {
		return nil, &StageError{Stage: "compile_cover", Err: err}
	}

	now := b.now()
	app := &domain.Application{
		ID:           uuid.New(),
		UserID:       userID,
		JobID:        job.ID,
		ResumePDFURL: &resumeURL,
		CoverPDFURL:  &coverURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := b.apps.UpsertArtifacts(ctx, app); err != nil {
		return nil, &StageError{Stage: "save_application", Err: err}
	}

	log.Info("artifacts built", "duration_ms", now.Sub(start).Milliseconds())
	return &batch.Artifacts{ResumePDFURL: &resumeURL, CoverPDFURL: &coverURL}, nil
}
