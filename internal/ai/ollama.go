package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const ollamaName = "ollama"

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: timeout},
	}
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

func (p *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", configError(ollamaName, "prompt is empty")
	}
	reqBody := ollamaChatReq{
		Model:    p.Model,
		Stream:   false,
		Messages: []ollamaMsg{{Role: "user", Content: prompt}},
	}

	endpoint := fmt.Sprintf("%s/api/chat", strings.TrimRight(p.BaseURL, "/"))
	raw, err := postJSON(ctx, p.Client, ollamaName, endpoint, nil, reqBody, "error")
	if err != nil {
		return "", err
	}
	return extractText(ollamaName, raw, "message.content")
}
