package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlfinder/internal/config"
	"github.com/JakeFAU/urlfinder/internal/progress"
	"github.com/JakeFAU/urlfinder/internal/progress/sinks"
	"github.com/JakeFAU/urlfinder/internal/resolver"
)

type stubResolver struct {
	backends []string
}

func (s stubResolver) Resolve(_ context.Context, c resolver.Candidate) resolver.Outcome {
	switch {
	case c.Input == "boom":
		panic("exploded")
	case strings.HasPrefix(c.Input, "missing"):
		return resolver.Outcome{ID: c.ID, URL: "http://" + c.Input, Status: resolver.StatusUnresolved}
	default:
		return resolver.Outcome{
			ID:     c.ID,
			URL:    "https://www." + strings.ToLower(c.Input) + ".com",
			Status: resolver.StatusResolved,
			Engine: "bing",
		}
	}
}

func (s stubResolver) Backends() []string {
	return s.backends
}

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *captureEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) stages() []progress.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]progress.Stage, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.Stage)
	}
	return out
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.MaxCandidates = 5
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config, emitter progress.Emitter, tracker BatchTracker) *httptest.Server {
	t.Helper()
	res := stubResolver{backends: []string{"bing", "duckduckgo", "google"}}
	srv := httptest.NewServer(NewServer(res, emitter, tracker, cfg, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthAndReady(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testConfig(t), nil, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	ready, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer ready.Body.Close()
	require.Equal(t, http.StatusOK, ready.StatusCode)
	var body struct {
		Status   string   `json:"status"`
		Backends []string `json:"backends"`
	}
	require.NoError(t, json.NewDecoder(ready.Body).Decode(&body))
	require.Equal(t, "ready", body.Status)
	require.Equal(t, []string{"bing", "duckduckgo", "google"}, body.Backends)
}

func TestRequestIDIsEchoed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testConfig(t), nil, nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestResolveBatch(t *testing.T) {
	t.Parallel()

	emitter := &captureEmitter{}
	srv := newTestServer(t, testConfig(t), emitter, nil)
	batchID := uuid.New()

	resp := postJSON(t, srv.URL+"/v1/resolve", map[string]any{
		"batch_id": batchID.String(),
		"candidates": []map[string]string{
			{"id": "a", "text": "Acme"},
			{"text": "missing co"},
			{"id": "c", "text": "boom"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body resolveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, batchID.String(), body.BatchID)
	require.Len(t, body.Outcomes, 3)

	require.Equal(t, "a", body.Outcomes[0].ID)
	require.Equal(t, "https://www.acme.com", body.Outcomes[0].URL)
	require.Equal(t, "bing", body.Outcomes[0].Engine)

	require.Equal(t, "1", body.Outcomes[1].ID)
	require.Equal(t, resolver.StatusUnresolved, body.Outcomes[1].Status)

	require.Equal(t, "c", body.Outcomes[2].ID)
	require.Equal(t, resolver.StatusErrored, body.Outcomes[2].Status)
	require.Contains(t, body.Outcomes[2].Error, "exploded")

	require.Equal(t, resolveSummary{Total: 3, Resolved: 1, Unresolved: 1, Errored: 1}, body.Summary)

	stages := emitter.stages()
	require.Len(t, stages, 5)
	require.Equal(t, progress.StageBatchStart, stages[0])
	require.Equal(t, progress.StageBatchDone, stages[4])
}

func TestResolveRejectsBadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testConfig(t), nil, nil)

	testCases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"invalid json", `{"candidates":`, "invalid JSON body"},
		{"unknown field", `{"names":["a"]}`, "invalid JSON body"},
		{"empty", `{"candidates":[]}`, "candidates must not be empty"},
		{"too many", `{"candidates":[{"text":"a"},{"text":"b"},{"text":"c"},{"text":"d"},{"text":"e"},{"text":"f"}]}`, "at most 5"},
		{"negative parallelism", `{"candidates":[{"text":"a"}],"max_parallelism":-1}`, "max_parallelism"},
		{"bad batch id", `{"candidates":[{"text":"a"}],"batch_id":"nope"}`, "batch_id"},
		{"duplicate ids", `{"candidates":[{"id":"x","text":"a"},{"id":"x","text":"b"}]}`, "duplicate"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp, err := http.Post(srv.URL+"/v1/resolve", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Contains(t, body["error"], tc.wantErr)
		})
	}
}

func TestParallelismIsCapped(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Executor.MaxParallelism = 4
	s := NewServer(stubResolver{}, nil, nil, cfg, nil)

	require.Equal(t, 4, s.parallelism(0))
	require.Equal(t, 2, s.parallelism(2))
	require.Equal(t, 4, s.parallelism(64))
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "s3cret"
	srv := newTestServer(t, cfg, nil, nil)
	body := `{"candidates":[{"text":"Acme"}]}`

	resp, err := http.Post(srv.URL+"/v1/resolve", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/resolve", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "s3cret")
	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	ok.Body.Close()
	require.Equal(t, http.StatusOK, ok.StatusCode)

	query, err := http.Post(srv.URL+"/v1/resolve?api_key=s3cret", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	query.Body.Close()
	require.Equal(t, http.StatusOK, query.StatusCode)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	require.Equal(t, http.StatusOK, health.StatusCode)
}

func TestBatchEndpoints(t *testing.T) {
	t.Parallel()

	tracker := sinks.NewTrackerSink(8)
	hub := progress.NewHub(progress.Config{MaxBatchWait: 5 * time.Millisecond}, tracker)
	t.Cleanup(func() { _ = hub.Close(context.Background()) })
	srv := newTestServer(t, testConfig(t), hub, tracker)

	batchID := uuid.New()
	resp := postJSON(t, srv.URL+"/v1/resolve", map[string]any{
		"batch_id":   batchID.String(),
		"candidates": []map[string]string{{"text": "Acme"}, {"text": "Globex"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status sinks.BatchStatus
	require.Eventually(t, func() bool {
		got, err := http.Get(srv.URL + "/v1/batches/" + batchID.String())
		if err != nil {
			return false
		}
		defer got.Body.Close()
		if got.StatusCode != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(got.Body).Decode(&status); err != nil {
			return false
		}
		return status.Done
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, batchID.String(), status.BatchID)
	require.Equal(t, 2, status.Completed)
	require.Equal(t, 2, status.Total)
	require.Equal(t, "resolved=2 unresolved=0 errored=0", status.Note)

	list, err := http.Get(srv.URL + "/v1/batches?limit=10")
	require.NoError(t, err)
	defer list.Body.Close()
	var listed struct {
		Batches []sinks.BatchStatus `json:"batches"`
	}
	require.NoError(t, json.NewDecoder(list.Body).Decode(&listed))
	require.Len(t, listed.Batches, 1)

	missing, err := http.Get(srv.URL + "/v1/batches/" + uuid.NewString())
	require.NoError(t, err)
	missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)

	bad, err := http.Get(srv.URL + "/v1/batches/not-a-uuid")
	require.NoError(t, err)
	bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)

	badLimit, err := http.Get(srv.URL + "/v1/batches?limit=zero")
	require.NoError(t, err)
	badLimit.Body.Close()
	require.Equal(t, http.StatusBadRequest, badLimit.StatusCode)
}

func TestBatchEndpointsWithoutTracker(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testConfig(t), nil, nil)
	resp, err := http.Get(srv.URL + "/v1/batches")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler blew up")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestParseLimit(t *testing.T) {
	t.Parallel()

	n, err := parseLimit("")
	require.NoError(t, err)
	require.Equal(t, 50, n)

	n, err = parseLimit("1000")
	require.NoError(t, err)
	require.Equal(t, 256, n)

	_, err = parseLimit("-3")
	require.Error(t, err)
}
