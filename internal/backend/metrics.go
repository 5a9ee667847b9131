package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// recordDuration records an outbound request duration in milliseconds.
func recordDuration(ctx context.Context, meter metric.Meter, d time.Duration) {
	histogram, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(d.Milliseconds()))
	}
}

// recordUsage turns a completion usage block into llm.usage counters.
func recordUsage(ctx context.Context, meter metric.Meter, usage map[string]interface{}) {
	if usage == nil {
		return
	}

	for key, value := range usage {
		floatVal, ok := value.(float64)
		if !ok {
			continue
		}
		counter, err := meter.Int64Counter(
			fmt.Sprintf("llm.usage.%s", key),
			metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
		)
		if err != nil {
			slog.Warn("failed to create counter", "key", key, "error", err)
			continue
		}
		counter.Add(ctx, int64(floatVal))
	}
}

// trimBody shortens an error response body for inclusion in error messages.
func trimBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
