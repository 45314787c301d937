package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Provider turns a single prompt into generated text.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Kind string

const (
	KindConfig    Kind = "config"
	KindHTTP      Kind = "http"
	KindTransport Kind = "transport"
	KindDecode    Kind = "decode"
	KindEmpty     Kind = "empty"
)

var ErrNoContent = errors.New("no content returned")

// Error is the single error type surfaced by every provider.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed. Missing
// credentials and 4xx rejections other than 429 are permanent.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindConfig:
		return false
	case KindHTTP:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return true
	}
}

// IsRetryable classifies any error returned by a provider. Errors that are
// not *Error are assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return true
}

func configError(provider, msg string) *Error {
	return &Error{Provider: provider, Kind: KindConfig, Message: msg}
}

func emptyError(provider string) *Error {
	return &Error{Provider: provider, Kind: KindEmpty, Message: ErrNoContent.Error(), Err: ErrNoContent}
}

// postJSON sends body to url and returns the raw 2xx response. Non-2xx
// responses become KindHTTP errors carrying the provider's own message when
// errPath finds one in the payload.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body any, errPath string) ([]byte, error) {
	if client == nil {
		return nil, configError(provider, "http client is nil")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Provider: provider, Kind: KindDecode, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, configError(provider, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Provider: provider, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &Error{Provider: provider, Kind: KindTransport, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if gjson.ValidBytes(raw) {
			msg = strings.TrimSpace(gjson.GetBytes(raw, errPath).String())
		}
		if msg == "" {
			msg = "API request failed."
		}
		return nil, &Error{Provider: provider, Kind: KindHTTP, StatusCode: resp.StatusCode, Message: msg}
	}
	if !gjson.ValidBytes(raw) {
		return nil, &Error{Provider: provider, Kind: KindDecode, Message: "invalid JSON response"}
	}
	return raw, nil
}

// extractText pulls the text at path out of a response, trimmed. A missing
// or blank value is a KindEmpty error.
func extractText(provider string, raw []byte, path string) (string, error) {
	text := strings.TrimSpace(gjson.GetBytes(raw, path).String())
	if text == "" {
		return "", emptyError(provider)
	}
	return text, nil
}
