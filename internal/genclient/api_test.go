package genclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAPI_SubmitAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/reports/generate":
			assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
			var body struct {
				EntryIDs []string `json:"entry_ids"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"e1", "e2"}, body.EntryIDs)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"job_id":"job-1","status":"pending","message":"Report generation started in background"}}`))
		case r.URL.Path == "/reports/jobs/job-1":
			_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"job_id":"job-1","status":"completed","report":"# R","period":{"start":"2026-02-05","end":"2026-02-10"}}}`))
		case r.URL.Path == "/reports/jobs/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":40401,"message":"job not found","data":null}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":10002,"message":"entry_ids is required","data":null}`))
		}
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL+"/", "tok", time.Second)
	ctx := context.Background()

	id, err := api.Submit(ctx, []string{"e1", "e2"}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	st, err := api.Status(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, "# R", st.Report)
	assert.Equal(t, &Period{Start: "2026-02-05", End: "2026-02-10"}, st.Period)

	_, err = api.Status(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = api.Status(ctx, "other")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "entry_ids is required", apiErr.Message)
}

func TestHTTPAPI_SaveReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reports", r.URL.Path)
		var body struct {
			Content string  `json:"content"`
			Period  *Period `json:"period"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "# R", body.Content)
		assert.Equal(t, &Period{Start: "2026-02-05", End: "2026-02-10"}, body.Period)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"id":"rep-1","content":"# R"}}`))
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL, "", time.Second)
	id, err := api.SaveReport(context.Background(), completedWith("job-1", "# R"))
	require.NoError(t, err)
	assert.Equal(t, "rep-1", id)

	_, err = api.SaveReport(context.Background(), &JobStatus{Status: StatusCompleted})
	assert.Error(t, err)
}
