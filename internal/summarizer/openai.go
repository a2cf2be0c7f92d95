package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

// Model variants selectable through configuration: a fast default and
// a slower, higher-quality alternative.
const (
	VariantFast    = "fast"
	VariantQuality = "quality"

	// Reasoning tokens count against the output budget, so the cap
	// carries headroom beyond the requested summary ceiling.
	outputTokenHeadroom int64 = 256

	instructionsFormat = `Summarize the article text into a short abstractive summary.

Rules:
- The summary must be between %d and %d tokens long.
- Keep the key facts: dates, numbers, names, outcomes.
- Neutral tone, plain prose, no lists and no headers.
- Output in the same language as the input.`
)

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	client  openai.Client
	model   openai.ChatModel
	variant string
}

// NewOpenAISummarizer builds a summarizer for the given model variant.
// Unknown variants fall back to the fast model.
func NewOpenAISummarizer(apiKey, variant string) (*OpenAISummarizer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is empty")
	}

	model := openai.ChatModelGPT5Mini2025_08_07
	if variant == VariantQuality {
		model = openai.ChatModelGPT5
	} else {
		variant = VariantFast
	}

	return &OpenAISummarizer{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		variant: variant,
	}, nil
}

// Variant reports which configured model variant is in use.
func (s *OpenAISummarizer) Variant() string {
	return s.variant
}

// Summarize produces one summary within the requested length bounds.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", errors.New("input is empty")
	}

	resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           s.model,
		MaxOutputTokens: openai.Int(int64(input.MaxLen) + outputTokenHeadroom),
		Reasoning: responses.ReasoningParam{
			Effort: openai.ReasoningEffortLow,
		},
		Instructions: openai.String(
			fmt.Sprintf(instructionsFormat, input.MinLen, input.MaxLen),
		),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}

	if resp.Status == "incomplete" {
		return "", fmt.Errorf(
			"response is incomplete (reason = %s, maxLen = %d)",
			resp.IncompleteDetails.Reason,
			input.MaxLen,
		)
	}

	summary := strings.TrimSpace(resp.OutputText())
	if summary == "" {
		return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
	}

	return summary, nil
}
