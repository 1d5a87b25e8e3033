package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
)

// ErrEmptyResponse is returned when the model answers without content.
var ErrEmptyResponse = errors.New("model returned no content")

const systemPrompt = `You help people near Chorvátsky Grob - Čierna Voda (Slovakia) pick a place for lunch.
Answer with a single JSON object and nothing else, in this shape:
{
  "date": "YYYY-MM-DD",
  "ndegust": {"soup": "text or —", "main": "text or —", "priceBand": "UNDER_10|UNDER_15|OVER_20"},
  "umedveda": {"soup": "text or —", "main": "text or —", "priceBand": "UNDER_10|UNDER_15|OVER_20"},
  "tips": [
    {"name": "string", "dish": "text or —", "priceBand": "UNDER_10|UNDER_15|OVER_20"}
  ]
}
Rules:
- Always include both Ndegust and U Medveďa.
- Give exactly 4 tips for places within 15 km of Čierna Voda (Bratislava region).
- When you do not know the actual daily menu, use "—" and typical dishes, and estimate the price band realistically.
- Write dish names in Slovak.`

// Generator asks a chat model for the day's snapshot. Rate-limited calls are
// retried with a linearly growing delay.
type Generator struct {
	Client      Client
	Model       string
	Temperature float32
	MaxAttempts int
	Backoff     time.Duration

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGenerator returns a generator with default model settings.
func NewGenerator(client Client) *Generator {
	return &Generator{
		Client:      client,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
	}
}

// Generate returns the raw JSON document produced by the model for date.
func (g *Generator) Generate(ctx context.Context, date string) ([]byte, error) {
	if g.Client == nil {
		return nil, errors.New("llm client not configured")
	}
	model := g.Model
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: g.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Date: %s. Produce the JSON described above.", date)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := g.Client.CreateChatCompletion(ctx, req)
		if err == nil {
			return content(resp)
		}
		lastErr = err
		if !IsRateLimited(err) || attempt == attempts {
			break
		}

		delay := time.Duration(attempt) * g.Backoff
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("model rate limited, retrying")
		if err := g.wait(ctx, delay); err != nil {
			return nil, errors.Wrap(err, "interrupted while waiting to retry")
		}
	}
	return nil, errors.Wrapf(lastErr, "chat completion with %s failed", model)
}

func (g *Generator) wait(ctx context.Context, d time.Duration) error {
	if g.sleep != nil {
		return g.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func content(resp openai.ChatCompletionResponse) ([]byte, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return nil, ErrEmptyResponse
	}
	return []byte(out), nil
}

// IsRateLimited reports whether err carries an HTTP 429 from the API.
func IsRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
