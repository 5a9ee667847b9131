package backend

import (
	"context"

	"PrettyChat/internal/session"
)

// Client produces one assistant reply for a user prompt. history holds the
// prior turns of the conversation in order; a client may use all of it, a
// window, or none, depending on what its model can take.
//
// Generate returns an error wrapping ErrUnavailable when the backend cannot
// be reached and ErrBackend when it answers with something unusable. There
// are no retries; a single failure surfaces to the caller.
type Client interface {
	Generate(ctx context.Context, prompt string, history []session.Turn) (string, error)
}
