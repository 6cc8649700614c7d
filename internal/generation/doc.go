// Package generation builds the application artifacts for a job. It is the
// production batch.ArtifactBuilder: content is tailored by an LLM (Gemini),
// rendered to LaTeX, compiled to hosted PDFs and recorded as the user's
// application for the job. The collaborators sit behind small interfaces so
// the runner never couples to a specific external service.
package generation
