package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"PrettyChat/internal/session"
)

// completionRequest is the llama.cpp style /v1/completions payload.
type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	ContextSize int     `json:"n_ctx"`
	Temperature float64 `json:"temperature"`
	Stop        string  `json:"stop"`
	Stream      bool    `json:"stream"`
}

// completionResponse is the non-streaming /v1/completions reply.
type completionResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]interface{} `json:"usage"`
}

// CompletionOptions configures a completion client.
type CompletionOptions struct {
	Endpoint    string
	Model       string
	MaxTokens   int
	ContextSize int
	Temperature float64
	Stop        string
	Timeout     time.Duration
}

// CompletionClient speaks the llama.cpp /v1/completions API. The TinyLlama
// and Llama 3.1 deployments both expose it; they differ only in endpoint,
// model and prompt template, so NewTinyLlama and NewLlama318B share this
// implementation.
type CompletionClient struct {
	name        string
	opts        CompletionOptions
	buildPrompt func(question string) string
	httpClient  *http.Client
	tracer      trace.Tracer
	meter       metric.Meter
}

// NewTinyLlama creates a client for the small single-sentence model.
func NewTinyLlama(opts CompletionOptions, tracer trace.Tracer, meter metric.Meter) *CompletionClient {
	return newCompletion("tinyllama", opts, tinyLlamaPrompt, tracer, meter)
}

// NewLlama318B creates a client for the Llama 3.1 8B instruct model.
func NewLlama318B(opts CompletionOptions, tracer trace.Tracer, meter metric.Meter) *CompletionClient {
	return newCompletion("llama3_1_8b", opts, llama318BPrompt, tracer, meter)
}

func newCompletion(name string, opts CompletionOptions, buildPrompt func(string) string, tracer trace.Tracer, meter metric.Meter) *CompletionClient {
	return &CompletionClient{
		name:        name,
		opts:        opts,
		buildPrompt: buildPrompt,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		tracer:      tracer,
		meter:       meter,
	}
}

// tinyLlamaPrompt wraps the question in the one-sentence instruction the
// small model needs to stay on topic.
func tinyLlamaPrompt(question string) string {
	return "\nYou are a helpful assistant.\n" +
		"Answer the following question in exactly one sentence only. " +
		"Your sentence should be concise but informative, providing key context if relevant. " +
		"Do not describe yourself, do not repeat the question, do not ask questions, and do not write more than one period. " +
		"After the first period, stop writing immediately.\n\n" +
		fmt.Sprintf("Question: %s\n", question) +
		"Answer (one informative sentence only):"
}

// llama318BPrompt uses the SYSTEM/USER/ASSISTANT framing the instruct model
// was tuned on.
func llama318BPrompt(question string) string {
	return "SYSTEM: You are a helpful assistant.\n" +
		"SYSTEM: Answer questions in exactly one sentence. " +
		"Your answer should be concise but informative, providing key context if relevant. " +
		"Do not describe yourself, do not repeat phrases, do not add extra information beyond the topic, and do not ask questions. " +
		"End your answer after the first period.\n\n" +
		fmt.Sprintf("USER: %s\n", question) +
		"ASSISTANT: (one informative sentence only)"
}

// Generate sends the templated prompt and returns the first choice's text.
// The history is not forwarded; these models answer one question per call.
func (c *CompletionClient) Generate(ctx context.Context, prompt string, _ []session.Turn) (string, error) {
	ctx, span := c.tracer.Start(ctx, c.name+"_generate")
	defer span.End()

	start := time.Now()

	fullPrompt := c.buildPrompt(prompt)
	slog.Info("sending completion prompt", "backend", c.name, "chars", len(fullPrompt))

	body, err := json.Marshal(completionRequest{
		Model:       c.opts.Model,
		Prompt:      fullPrompt,
		MaxTokens:   c.opts.MaxTokens,
		ContextSize: c.opts.ContextSize,
		Temperature: c.opts.Temperature,
		Stop:        c.opts.Stop,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("%s: marshal request: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", c.name, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: %w: read response: %v", c.name, ErrBackend, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %w: status %d: %s", c.name, ErrBackend, resp.StatusCode, trimBody(respBody))
	}

	var cr completionResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", fmt.Errorf("%s: %w: decode response: %v", c.name, ErrBackend, err)
	}

	recordDuration(ctx, c.meter, time.Since(start))
	recordUsage(ctx, c.meter, cr.Usage)

	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: empty choices", c.name, ErrBackend)
	}

	// The server already honors the stop sequence; cutting again here
	// guards against models that emit it inside the text.
	text := cr.Choices[0].Text
	if c.opts.Stop != "" {
		if i := strings.Index(text, c.opts.Stop); i >= 0 {
			text = text[:i]
		}
	}

	slog.Info("completion response", "backend", c.name, "chars", len(text))
	return text, nil
}
