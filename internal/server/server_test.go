package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civiclens/internal/config"
	"civiclens/internal/fetch"
	"civiclens/internal/ratelimit"
	"civiclens/internal/summarizer"
)

const testSummary = "A short test summary."

type stubSummarizer struct {
	mu        sync.Mutex
	calls     int
	summary   string
	err       error
	lastInput summarizer.Input
}

func (s *stubSummarizer) Summarize(
	_ context.Context,
	input summarizer.Input,
) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastInput = input

	if s.err != nil {
		return "", s.err
	}

	return s.summary, nil
}

func (s *stubSummarizer) last() (int, summarizer.Input) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls, s.lastInput
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type successResponse struct {
	Summary string `json:"summary"`
	Metrics *struct {
		Words       int    `json:"words"`
		FetchMS     int64  `json:"fetch_ms"`
		ExtractMS   int64  `json:"extract_ms"`
		SummarizeMS int64  `json:"summarize_ms"`
		Model       string `json:"model"`
	} `json:"metrics"`
}

func newTestServer(t *testing.T, cfg config.Config, stub summarizer.Summarizer, maxRequests int) http.Handler {
	t.Helper()

	fetcher, err := fetch.New(2 * time.Second)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.New(maxRequests, time.Minute)

	return New(cfg, limiter, fetcher, stub, log).Handler()
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:51234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return resp
}

func longText(words int) string {
	return strings.TrimSpace(strings.Repeat("council budget hearing vote outcome ", (words+4)/5))
}

func articleBody(t *testing.T) string {
	t.Helper()

	sentence := "The council approved the budget measure after a long public hearing on Tuesday evening. "

	return `<html><body><article><p>` +
		strings.Repeat(sentence, 5) +
		`</p><p>` +
		strings.Repeat(sentence, 5) +
		`</p></article></body></html>`
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, config.Config{}, &stubSummarizer{summary: testSummary}, 100)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestSummarizeText(t *testing.T) {
	stub := &stubSummarizer{summary: testSummary}
	h := newTestServer(t, config.Config{}, stub, 100)

	rec := postJSON(h, "/summarize", `{"text":"`+longText(100)+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp successResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testSummary, resp.Summary)
	assert.Nil(t, resp.Metrics, "metrics are debug-only")

	calls, input := stub.last()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 60, input.MinLen, "default bounds pass through for long input")
	assert.Equal(t, 180, input.MaxLen)
}

func TestSummarizeTextDebugMetrics(t *testing.T) {
	stub := &stubSummarizer{summary: testSummary}
	h := newTestServer(t, config.Config{Debug: true}, stub, 100)

	rec := postJSON(h, "/summarize", `{"text":"`+longText(100)+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp successResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Metrics)
	assert.Equal(t, 100, resp.Metrics.Words)
	assert.Equal(t, summarizer.VariantFast, resp.Metrics.Model)
	assert.Zero(t, resp.Metrics.FetchMS)
	assert.Zero(t, resp.Metrics.ExtractMS)
}

func TestSummarizeTextShortInputTightensBounds(t *testing.T) {
	stub := &stubSummarizer{summary: testSummary}
	h := newTestServer(t, config.Config{}, stub, 100)

	rec := postJSON(h, "/summarize", `{"text":"`+longText(10)+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	_, input := stub.last()
	assert.Equal(t, 30, input.MinLen)
	assert.Equal(t, 40, input.MaxLen)
}

func TestSummarizeTextEmpty(t *testing.T) {
	h := newTestServer(t, config.Config{}, &stubSummarizer{summary: testSummary}, 100)

	rec := postJSON(h, "/summarize", `{"text":"  \n "}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "NO_CONTENT", errorBody(t, rec).Error.Code)
}

func TestSummarizeTextBadLengths(t *testing.T) {
	h := newTestServer(t, config.Config{}, &stubSummarizer{summary: testSummary}, 100)

	rec := postJSON(h, "/summarize",
		`{"text":"`+longText(90)+`","min_len":150,"max_len":100}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "BAD_LENGTHS", errorBody(t, rec).Error.Code)
}

func TestSummarizeTextNonIntegerLengths(t *testing.T) {
	h := newTestServer(t, config.Config{}, &stubSummarizer{summary: testSummary}, 100)

	rec := postJSON(h, "/summarize",
		`{"text":"`+longText(90)+`","min_len":1.5,"max_len":100}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := errorBody(t, rec)
	assert.Equal(t, "BAD_LENGTHS", resp.Error.Code)
	assert.Equal(t, "Lengths must be integers", resp.Error.Message)
}

func TestSummarizeTextModelFailure(t *testing.T) {
	stub := &stubSummarizer{err: context.DeadlineExceeded}
	h := newTestServer(t, config.Config{}, stub, 100)

	rec := postJSON(h, "/summarize", `{"text":"`+longText(100)+`"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := errorBody(t, rec)
	assert.Equal(t, "MODEL_FAILURE", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "deadline",
		"internal error text must not reach the caller")
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, config.Config{}, &stubSummarizer{summary: testSummary}, 2)

	body := `{"text":"` + longText(100) + `"}`

	assert.Equal(t, http.StatusOK, postJSON(h, "/summarize", body).Code)
	assert.Equal(t, http.StatusOK, postJSON(h, "/summarize", body).Code)

	rec := postJSON(h, "/summarize", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT", errorBody(t, rec).Error.Code)

	retryAfter := rec.Header().Get("Retry-After")
	require.NotEmpty(t, retryAfter)
	assert.NotEqual(t, "0", retryAfter)
}

func TestRateLimitKeyedByForwardedFor(t *testing.T) {
	h := newTestServer(t, config.Config{}, &stubSummarizer{summary: testSummary}, 1)

	body := `{"text":"` + longText(100) + `"}`

	assert.Equal(t, http.StatusOK, postJSON(h, "/summarize", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(h, "/summarize", body).Code)

	// A different forwarded client gets its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/summarize", strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	req.RemoteAddr = "10.0.0.1:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSummarizeHTML(t *testing.T) {
	stub := &stubSummarizer{summary: testSummary}
	h := newTestServer(t, config.Config{}, stub, 100)

	payload, err := json.Marshal(map[string]any{"html": articleBody(t)})
	require.NoError(t, err)

	rec := postJSON(h, "/summarize-html", string(payload))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp successResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testSummary, resp.Summary)

	calls, input := stub.last()
	assert.Equal(t, 1, calls)
	assert.Contains(t, input.Text, "approved the budget measure")
}

func TestSummarizeHTMLNoContent(t *testing.T) {
	h := newTestServer(t, config.Config{}, &stubSummarizer{summary: testSummary}, 100)

	rec := postJSON(h, "/summarize-html",
		`{"html":"<html><body><p>Nothing much here.</p></body></html>"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "NO_CONTENT", errorBody(t, rec).Error.Code)
}

func TestSummarizeURL(t *testing.T) {
	article := articleBody(t)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(article))
	}))
	defer backend.Close()

	stub := &stubSummarizer{summary: testSummary}
	h := newTestServer(t, config.Config{Debug: true}, stub, 100)

	rec := postJSON(h, "/summarize-url", `{"url":"`+backend.URL+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp successResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testSummary, resp.Summary)
	require.NotNil(t, resp.Metrics)
	assert.GreaterOrEqual(t, resp.Metrics.Words, 30)
}

func TestSummarizeURLFetchFailed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name string
		url  string
	}{
		{"non-2xx upstream", backend.URL},
		{"connection refused", closedURL},
		{"invalid url", "not a url"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			stub := &stubSummarizer{summary: testSummary}
			h := newTestServer(t, config.Config{Debug: true}, stub, 100)

			rec := postJSON(h, "/summarize-url", `{"url":"`+test.url+`"}`)

			assert.Equal(t, http.StatusBadGateway, rec.Code)
			assert.Equal(t, "FETCH_FAILED", errorBody(t, rec).Error.Code)

			calls, _ := stub.last()
			assert.Zero(t, calls, "the model must not run after a failed fetch")
		})
	}
}

func TestFeedback(t *testing.T) {
	h := newTestServer(t, config.Config{}, &stubSummarizer{summary: testSummary}, 100)

	rec := postJSON(h, "/feedback",
		`{"mode":"url","liked":true,"len_preset":"short","url":"https://example.com/a"}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestFeedbackNeverFails(t *testing.T) {
	h := newTestServer(t, config.Config{}, &stubSummarizer{summary: testSummary}, 100)

	rec := postJSON(h, "/feedback", `{"liked": not-json`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
