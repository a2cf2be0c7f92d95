package server

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"civiclens/internal/domain"
	"civiclens/internal/extract"
	"civiclens/internal/fetch"
	"civiclens/internal/lengths"
	"civiclens/internal/ratelimit"
	"civiclens/internal/summarizer"
	"civiclens/internal/textutil"
)

// Pipeline sequences one request through admission, optional fetch,
// extraction, normalization, length resolution and the model call.
// Every failure is terminal: nothing here retries.
type Pipeline struct {
	limiter    *ratelimit.Limiter
	fetcher    *fetch.Fetcher
	summarizer summarizer.Summarizer
	log        *slog.Logger
}

// Outcome carries the response payload together with the per-stage
// timings for the request log record. Timings stay zero for stages
// that did not run or did not finish.
type Outcome struct {
	Summary     string
	Host        string
	Words       int
	Stage       domain.ExtractionStage
	FetchMS     int64
	ExtractMS   int64
	SummarizeMS int64
}

func NewPipeline(
	limiter *ratelimit.Limiter,
	fetcher *fetch.Fetcher,
	s summarizer.Summarizer,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		limiter:    limiter,
		fetcher:    fetcher,
		summarizer: s,
		log:        log,
	}
}

// SummarizeText summarizes free text submitted by the caller.
func (p *Pipeline) SummarizeText(
	ctx context.Context,
	clientID string,
	text string,
	minLen int,
	maxLen int,
) (*Outcome, error) {
	out := &Outcome{}
	if err := p.admit(clientID); err != nil {
		return out, err
	}

	normalized := textutil.Normalize(text)
	if normalized == "" {
		return out, &domain.Error{
			Code:    domain.CodeNoContent,
			Message: "No text provided",
		}
	}
	out.Words = textutil.WordCount(normalized)

	bounds, err := lengths.Resolve(minLen, maxLen, out.Words)
	if err != nil {
		return out, err
	}

	return p.invoke(ctx, out, normalized, bounds)
}

// SummarizeURL fetches the page behind rawURL and summarizes its
// extracted article text.
func (p *Pipeline) SummarizeURL(
	ctx context.Context,
	clientID string,
	rawURL string,
	minLen int,
	maxLen int,
) (*Outcome, error) {
	out := &Outcome{Host: hostOf(rawURL)}
	if err := p.admit(clientID); err != nil {
		return out, err
	}

	fetchStart := time.Now()

	html, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		p.log.WarnContext(ctx, "Fetch failed",
			"host", out.Host,
			"error", bounded(err.Error()))

		return out, &domain.Error{
			Code:    domain.CodeFetchFailed,
			Message: "Could not reach the site",
		}
	}
	out.FetchMS = time.Since(fetchStart).Milliseconds()

	return p.summarizeDocument(ctx, out, html, minLen, maxLen)
}

// SummarizeHTML summarizes the article text extracted from raw HTML
// submitted by the caller, skipping the fetch stage.
func (p *Pipeline) SummarizeHTML(
	ctx context.Context,
	clientID string,
	html string,
	minLen int,
	maxLen int,
) (*Outcome, error) {
	out := &Outcome{}
	if err := p.admit(clientID); err != nil {
		return out, err
	}

	return p.summarizeDocument(ctx, out, html, minLen, maxLen)
}

func (p *Pipeline) summarizeDocument(
	ctx context.Context,
	out *Outcome,
	html string,
	minLen int,
	maxLen int,
) (*Outcome, error) {
	extractStart := time.Now()

	extraction, err := extract.Extract(html)
	out.ExtractMS = time.Since(extractStart).Milliseconds()
	if err != nil {
		return out, err
	}

	out.Words = extraction.WordCount
	out.Stage = extraction.Stage

	bounds, err := lengths.Resolve(minLen, maxLen, extraction.WordCount)
	if err != nil {
		return out, err
	}

	return p.invoke(ctx, out, extraction.Text, bounds)
}

func (p *Pipeline) invoke(
	ctx context.Context,
	out *Outcome,
	text string,
	bounds domain.Bounds,
) (*Outcome, error) {
	summarizeStart := time.Now()

	summary, err := p.summarizer.Summarize(ctx, summarizer.Input{
		Text:   text,
		MinLen: bounds.MinLen,
		MaxLen: bounds.MaxLen,
	})
	if err != nil {
		p.log.WarnContext(ctx, "Summarizer failed",
			"words", out.Words,
			"minLen", bounds.MinLen,
			"maxLen", bounds.MaxLen,
			"error", bounded(err.Error()))

		return out, &domain.Error{
			Code:    domain.CodeModelFailure,
			Message: "The summarizer failed",
		}
	}

	out.SummarizeMS = time.Since(summarizeStart).Milliseconds()
	out.Summary = summary

	return out, nil
}

func (p *Pipeline) admit(clientID string) error {
	allowed, retryAfter := p.limiter.Admit(clientID)
	if allowed {
		return nil
	}

	return &domain.Error{
		Code:       domain.CodeRateLimit,
		Message:    "Too many requests",
		RetryAfter: retryAfter,
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return u.Host
}
