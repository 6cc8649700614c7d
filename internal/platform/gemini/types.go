package gemini

// TailorInput describes the job the application is tailored for.
type TailorInput struct {
	JobTitle    string
	Company     string
	Description string
}

// TailoredContent is the model output used to render the resume and cover letter.
type TailoredContent struct {
	// CVSummary replaces the resume summary paragraph.
	CVSummary string      `json:"cvSummary"`
	Cover     CoverLetter `json:"cover"`
}

// CoverLetter holds the three body paragraphs of the cover letter.
type CoverLetter struct {
	ParagraphOne   string `json:"paragraphOne"`
	ParagraphTwo   string `json:"paragraphTwo"`
	ParagraphThree string `json:"paragraphThree"`
}

// maxFieldLength bounds every generated field.
const maxFieldLength = 1400
