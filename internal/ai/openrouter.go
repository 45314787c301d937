package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const openRouterName = "openrouter"

type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Client  *http.Client
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatReq struct {
	Model    string          `json:"model"`
	Messages []openRouterMsg `json:"messages"`
	Stream   bool            `json:"stream"`
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string, timeout time.Duration) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenRouterProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (p *OpenRouterProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return "", configError(openRouterName, "api key is required")
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", configError(openRouterName, "model is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", configError(openRouterName, "prompt is empty")
	}

	reqBody := openRouterChatReq{
		Model:    model,
		Stream:   false,
		Messages: []openRouterMsg{{Role: "user", Content: prompt}},
	}

	headers := map[string]string{"Authorization": "Bearer " + p.APIKey}
	if p.SiteURL != "" {
		headers["HTTP-Referer"] = p.SiteURL
	}
	if p.AppName != "" {
		headers["X-Title"] = p.AppName
	}

	endpoint := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	raw, err := postJSON(ctx, p.Client, openRouterName, endpoint, headers, reqBody, "error.message")
	if err != nil {
		return "", err
	}
	// OpenRouter can answer 200 with an error object instead of choices.
	if msg := strings.TrimSpace(gjson.GetBytes(raw, "error.message").String()); msg != "" {
		code := int(gjson.GetBytes(raw, "error.code").Int())
		if code == 0 {
			code = http.StatusBadGateway
		}
		return "", &Error{Provider: openRouterName, Kind: KindHTTP, StatusCode: code, Message: msg}
	}
	return extractText(openRouterName, raw, "choices.0.message.content")
}
