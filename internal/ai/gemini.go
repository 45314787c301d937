package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const geminiName = "gemini"

type GeminiProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewGeminiProvider(baseURL, apiKey, model string, timeout time.Duration) *GeminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "gemini-flash-latest"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GeminiProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiReq struct {
	Contents []geminiContent `json:"contents"`
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return "", configError(geminiName, "AI Service Unavailable (API key missing)")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", configError(geminiName, "prompt is empty")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(p.BaseURL, "/"), url.PathEscape(p.Model), url.QueryEscape(p.APIKey))

	body := geminiReq{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	raw, err := postJSON(ctx, p.Client, geminiName, endpoint, nil, body, "error.message")
	if err != nil {
		return "", err
	}
	return extractText(geminiName, raw, "candidates.0.content.parts.0.text")
}
