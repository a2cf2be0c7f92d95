package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"civiclens/internal/domain"
)

// Defaults applied when the caller omits the length bounds.
const (
	defaultMinLen = 60
	defaultMaxLen = 180
)

type summarizeTextRequest struct {
	Text   string `json:"text"`
	MinLen *int   `json:"min_len"`
	MaxLen *int   `json:"max_len"`
}

type summarizeURLRequest struct {
	URL    string `json:"url"`
	MinLen *int   `json:"min_len"`
	MaxLen *int   `json:"max_len"`
}

type summarizeHTMLRequest struct {
	HTML   string `json:"html"`
	MinLen *int   `json:"min_len"`
	MaxLen *int   `json:"max_len"`
}

type feedbackRequest struct {
	Mode      string `json:"mode"`
	Liked     bool   `json:"liked"`
	LenPreset string `json:"len_preset"`
	URL       string `json:"url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true})
}

func (s *Server) handleSummarizeText(w http.ResponseWriter, r *http.Request) {
	const endpoint = "summarize"
	clientID := clientIP(r)

	var req summarizeTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.finish(w, r, endpoint, clientID, &Outcome{}, decodeError(err))
		return
	}

	minLen, maxLen := boundsOrDefault(req.MinLen, req.MaxLen)
	out, err := s.pipeline.SummarizeText(r.Context(), clientID, req.Text, minLen, maxLen)
	s.finish(w, r, endpoint, clientID, out, err)
}

func (s *Server) handleSummarizeURL(w http.ResponseWriter, r *http.Request) {
	const endpoint = "summarize-url"
	clientID := clientIP(r)

	var req summarizeURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.finish(w, r, endpoint, clientID, &Outcome{}, decodeError(err))
		return
	}

	minLen, maxLen := boundsOrDefault(req.MinLen, req.MaxLen)
	out, err := s.pipeline.SummarizeURL(r.Context(), clientID, req.URL, minLen, maxLen)
	s.finish(w, r, endpoint, clientID, out, err)
}

func (s *Server) handleSummarizeHTML(w http.ResponseWriter, r *http.Request) {
	const endpoint = "summarize-html"
	clientID := clientIP(r)

	var req summarizeHTMLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.finish(w, r, endpoint, clientID, &Outcome{}, decodeError(err))
		return
	}

	minLen, maxLen := boundsOrDefault(req.MinLen, req.MaxLen)
	out, err := s.pipeline.SummarizeHTML(r.Context(), clientID, req.HTML, minLen, maxLen)
	s.finish(w, r, endpoint, clientID, out, err)
}

// handleFeedback is a fire-and-forget telemetry sink: it always
// answers 204, even for bodies it cannot read.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	clientID := clientIP(r)

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.WarnContext(r.Context(), "Discarded malformed feedback",
			"client", clientID,
			"error", bounded(err.Error()))
	} else {
		s.log.InfoContext(r.Context(), "Feedback received",
			"client", clientID,
			"userAgent", bounded(r.UserAgent()),
			"mode", bounded(req.Mode),
			"liked", req.Liked,
			"lenPreset", bounded(req.LenPreset),
			"url", bounded(req.URL))
	}

	w.WriteHeader(http.StatusNoContent)
}

func boundsOrDefault(minLen, maxLen *int) (int, int) {
	resolvedMin := defaultMinLen
	if minLen != nil {
		resolvedMin = *minLen
	}

	resolvedMax := defaultMaxLen
	if maxLen != nil {
		resolvedMax = *maxLen
	}

	return resolvedMin, resolvedMax
}

// decodeError maps body decoding failures onto the closed taxonomy.
// Non-integer length fields get a precise message; everything else is
// reported as a generic invalid body.
func decodeError(err error) *domain.Error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) &&
		(typeErr.Field == "min_len" || typeErr.Field == "max_len") {
		return &domain.Error{
			Code:    domain.CodeBadLengths,
			Message: "Lengths must be integers",
		}
	}

	return &domain.Error{
		Code:    domain.CodeBadLengths,
		Message: "Invalid request body",
	}
}
