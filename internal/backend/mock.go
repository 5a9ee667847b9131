package backend

import (
	"context"
	"fmt"
	"log/slog"

	"PrettyChat/internal/session"
)

// Mock echoes the prompt in a fixed template. It never fails and performs no
// I/O, which makes it the safe default backend and a convenient test double.
type Mock struct{}

// NewMock returns a Mock client.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Generate(_ context.Context, prompt string, _ []session.Turn) (string, error) {
	slog.Info("mock prompt received", "chars", len(prompt))
	return fmt.Sprintf("[Mock] You said: %s\nThis is a mock response.", prompt), nil
}
