package ai

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyContent = errors.New("content is required")

const refineTemplate = `You are a professional Technical Writer and IT Documentation Assistant.
Your task is to refine the following journal entry into clear, professional, and grammatically correct technical documentation.

Guidelines:
- Maintain a professional and objective tone.
- Use precise technical terminology where appropriate.
- Ensure clarity and conciseness suitable for a daily work log or progress report.
- If the input is brief, expand slightly to make it a complete thought, but do not invent facts.
- Return ONLY the refined text. Do not add introductory phrases like 'Here is the refined text:'.

Text to refine:
`

func RefinePrompt(content string) string {
	return refineTemplate + content
}

// Refine rewrites a journal entry as technical documentation.
func Refine(ctx context.Context, p Provider, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	return p.Generate(ctx, RefinePrompt(content))
}
