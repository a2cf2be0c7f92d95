package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"civiclens/internal/config"
	"civiclens/internal/domain"
	"civiclens/internal/fetch"
	"civiclens/internal/ratelimit"
	"civiclens/internal/summarizer"
)

// Log attribute values are kept short so one noisy request cannot
// flood the log stream.
const maxLoggedChars = 500

type Server struct {
	cfg      config.Config
	model    string
	pipeline *Pipeline
	router   chi.Router
	log      *slog.Logger
}

func New(
	cfg config.Config,
	limiter *ratelimit.Limiter,
	fetcher *fetch.Fetcher,
	s summarizer.Summarizer,
	log *slog.Logger,
) *Server {
	srv := &Server{
		cfg:      cfg,
		model:    cfg.ModelVariant(),
		pipeline: NewPipeline(limiter, fetcher, s, log),
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Post("/summarize", srv.handleSummarizeText)
	r.Post("/summarize-url", srv.handleSummarizeURL)
	r.Post("/summarize-html", srv.handleSummarizeHTML)
	r.Post("/feedback", srv.handleFeedback)

	srv.router = r

	return srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// finish converts the pipeline result into the response and emits the
// single structured log record every terminal transition requires.
func (s *Server) finish(
	w http.ResponseWriter,
	r *http.Request,
	endpoint string,
	clientID string,
	out *Outcome,
	err error,
) {
	status := http.StatusOK
	var code domain.ErrorCode

	var domErr *domain.Error
	if err != nil {
		domErr = asDomainError(err)
		status = domErr.HTTPStatus()
		code = domErr.Code
	}

	s.logOutcome(r.Context(), endpoint, status, clientID, out, code)

	if domErr != nil {
		if domErr.Code == domain.CodeRateLimit {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(domErr)))
		}
		writeJSON(w, status, errorEnvelope{
			Error: errorDetail{Code: domErr.Code, Message: domErr.Message},
		})

		return
	}

	resp := summaryResponse{Summary: out.Summary}
	if s.cfg.Debug {
		resp.Metrics = &responseMetrics{
			Words:       out.Words,
			FetchMS:     out.FetchMS,
			ExtractMS:   out.ExtractMS,
			SummarizeMS: out.SummarizeMS,
			Model:       s.model,
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) logOutcome(
	ctx context.Context,
	endpoint string,
	status int,
	clientID string,
	out *Outcome,
	code domain.ErrorCode,
) {
	attrs := []any{
		"endpoint", endpoint,
		"status", status,
		"client", clientID,
		"words", out.Words,
		"fetchMS", out.FetchMS,
		"extractMS", out.ExtractMS,
		"summarizeMS", out.SummarizeMS,
		"model", s.model,
		"errorCode", string(code),
	}
	if out.Host != "" {
		attrs = append(attrs, "host", bounded(out.Host))
	}
	if out.Stage != "" {
		attrs = append(attrs, "stage", string(out.Stage))
	}

	if status == http.StatusOK {
		s.log.InfoContext(ctx, "Request completed", attrs...)
	} else {
		s.log.WarnContext(ctx, "Request failed", attrs...)
	}
}

// asDomainError narrows err to the closed taxonomy. Anything that is
// not already tagged escaped the stage boundaries unexpectedly and is
// reported as a model failure without leaking its text to the caller.
func asDomainError(err error) *domain.Error {
	var domErr *domain.Error
	if errors.As(err, &domErr) {
		return domErr
	}

	return &domain.Error{
		Code:    domain.CodeModelFailure,
		Message: "Internal error",
	}
}

func retryAfterSeconds(domErr *domain.Error) int {
	return max(1, int(math.Ceil(domErr.RetryAfter.Seconds())))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	// An encode failure here means the response is already lost;
	// it must not abort the request.
	_ = json.NewEncoder(w).Encode(body)
}

func bounded(s string) string {
	runes := []rune(s)
	if len(runes) > maxLoggedChars {
		return string(runes[:maxLoggedChars])
	}
	return s
}

type errorDetail struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type responseMetrics struct {
	Words       int    `json:"words"`
	FetchMS     int64  `json:"fetch_ms"`
	ExtractMS   int64  `json:"extract_ms"`
	SummarizeMS int64  `json:"summarize_ms"`
	Model       string `json:"model"`
}

type summaryResponse struct {
	Summary string           `json:"summary"`
	Metrics *responseMetrics `json:"metrics,omitempty"`
}

type healthResponse struct {
	OK bool `json:"ok"`
}
