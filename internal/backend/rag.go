package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"PrettyChat/internal/session"
)

// ragRequest is the payload the RAG service expects on its ask endpoint.
type ragRequest struct {
	Question string `json:"question"`
}

// RAGOptions configures a RAG client.
type RAGOptions struct {
	Endpoint string
	Timeout  time.Duration
}

// RAG asks a retrieval-augmented generation service for an answer. The
// service owns retrieval and prompting; this client only posts the question
// and reads back the plain-text answer.
type RAG struct {
	opts       RAGOptions
	httpClient *http.Client
	tracer     trace.Tracer
	meter      metric.Meter
}

// NewRAG creates a RAG client for the given endpoint.
func NewRAG(opts RAGOptions, tracer trace.Tracer, meter metric.Meter) *RAG {
	return &RAG{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		tracer:     tracer,
		meter:      meter,
	}
}

// Generate posts the prompt as a question and returns the whole response
// body. The RAG service chunks its answer over the wire; reading to EOF
// reassembles it.
func (c *RAG) Generate(ctx context.Context, prompt string, _ []session.Turn) (string, error) {
	ctx, span := c.tracer.Start(ctx, "rag_generate")
	defer span.End()

	start := time.Now()

	body, err := json.Marshal(ragRequest{Question: prompt})
	if err != nil {
		return "", fmt.Errorf("rag: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("rag: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Info("rag request", "endpoint", c.opts.Endpoint, "chars", len(prompt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("rag: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("rag: %w: read response: %v", ErrBackend, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rag: %w: status %d: %s", ErrBackend, resp.StatusCode, trimBody(respBody))
	}

	recordDuration(ctx, c.meter, time.Since(start))

	slog.Info("rag response", "status", resp.StatusCode, "chars", len(respBody))
	return string(respBody), nil
}
