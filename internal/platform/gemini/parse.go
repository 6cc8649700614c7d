package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseTailoredContent decodes model output, tolerating markdown fences and
// leading or trailing prose around the JSON object.
func parseTailoredContent(raw string) (*TailoredContent, error) {
	text := strings.TrimSpace(raw)

	candidates := []string{text}

	unfenced := strings.TrimPrefix(text, "```json")
	unfenced = strings.TrimPrefix(unfenced, "```")
	unfenced = strings.TrimSuffix(unfenced, "```")
	candidates = append(candidates, strings.TrimSpace(unfenced))

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}

	for _, c := range candidates {
		var out TailoredContent
		if err := json.Unmarshal([]byte(c), &out); err != nil {
			continue
		}
		out.normalize()
		if out.empty() {
			return nil, fmt.Errorf("%w: no content generated", ErrInvalidResponse)
		}
		return &out, nil
	}
	return nil, fmt.Errorf("%w: output is not a JSON object", ErrInvalidResponse)
}

func (c *TailoredContent) normalize() {
	c.CVSummary = clip(c.CVSummary)
	c.Cover.ParagraphOne = clip(c.Cover.ParagraphOne)
	c.Cover.ParagraphTwo = clip(c.Cover.ParagraphTwo)
	c.Cover.ParagraphThree = clip(c.Cover.ParagraphThree)
}

func (c *TailoredContent) empty() bool {
	return c.CVSummary == "" && c.Cover.ParagraphOne == "" &&
		c.Cover.ParagraphTwo == "" && c.Cover.ParagraphThree == ""
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxFieldLength {
		return strings.TrimSpace(string(r[:maxFieldLength]))
	}
	return s
}
