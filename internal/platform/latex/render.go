package latex

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/*.tex
var templateFS embed.FS

// LaTeX is brace-heavy, so templates use << >> delimiters.
var templates = template.Must(
	template.New("latex").
		Delims("<<", ">>").
		Funcs(template.FuncMap{"esc": Escape}).
		ParseFS(templateFS, "templates/*.tex"),
)

// ResumeInput fills the resume template.
type ResumeInput struct {
	Role    string
	Company string
	Summary string
}

// CoverInput fills the cover letter template.
type CoverInput struct {
	Role           string
	Company        string
	Date           string
	ParagraphOne   string
	ParagraphTwo   string
	ParagraphThree string
}

// RenderResume produces the resume document source.
func RenderResume(in ResumeInput) (string, error) {
	return render("resume.tex", in)
}

// RenderCoverLetter produces the cover letter document source.
func RenderCoverLetter(in CoverInput) (string, error) {
	return render("cover.tex", in)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
