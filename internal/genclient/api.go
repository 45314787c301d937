package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var ErrNotFound = errors.New("report job not found")

// API is the server side of report generation.
type API interface {
	Submit(ctx context.Context, entryIDs []string, idempotencyKey string) (string, error)
	Status(ctx context.Context, jobID string) (*JobStatus, error)
}

// APIError is a non-2xx answer carrying the server's message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// HTTPAPI talks to the journal HTTP server and unwraps its
// {code, message, data} envelope.
type HTTPAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPAPI(baseURL, token string, timeout time.Duration) *HTTPAPI {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *HTTPAPI) Submit(ctx context.Context, entryIDs []string, idempotencyKey string) (string, error) {
	body, err := json.Marshal(map[string]any{"entry_ids": entryIDs})
	if err != nil {
		return "", err
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	data, err := a.do(ctx, http.MethodPost, "/reports/generate", bytes.NewReader(body), headers)
	if err != nil {
		return "", err
	}
	id := data.Get("job_id").String()
	if id == "" {
		return "", errors.New("server returned no job id")
	}
	return id, nil
}

func (a *HTTPAPI) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	data, err := a.do(ctx, http.MethodGet, "/reports/jobs/"+url.PathEscape(jobID), nil, nil)
	if err != nil {
		return nil, err
	}
	var st JobStatus
	if err := json.Unmarshal([]byte(data.Raw), &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

// SaveReport stores a finished result as a permanent report and returns
// the new report id.
func (a *HTTPAPI) SaveReport(ctx context.Context, st *JobStatus) (string, error) {
	if st == nil || strings.TrimSpace(st.Report) == "" {
		return "", errors.New("no report content to save")
	}
	payload := map[string]any{"content": st.Report}
	if st.Period != nil {
		payload["period"] = st.Period
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	data, err := a.do(ctx, http.MethodPost, "/reports", bytes.NewReader(body), map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return "", err
	}
	id := data.Get("id").String()
	if id == "" {
		return "", errors.New("server returned no report id")
	}
	return id, nil
}

func (a *HTTPAPI) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return gjson.Result{}, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return gjson.Result{}, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, errors.New("server returned invalid json")
	}
	return gjson.GetBytes(raw, "data"), nil
}
