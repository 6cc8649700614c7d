// Package gemini tailors application content with Google's Gemini models.
//
// The Tailor renders a prompt from the job's title, company and description,
// requests JSON output and parses it into a resume summary and three cover
// letter paragraphs. Transient API errors are retried with exponential
// backoff; blocked or malformed output fails immediately.
package gemini
