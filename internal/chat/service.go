package chat

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"PrettyChat/internal/backend"
	"PrettyChat/internal/cache"
	"PrettyChat/internal/session"
)

// Options configures a Service.
type Options struct {
	// MaxHistoryTurns bounds how many prior turns are handed to a backend.
	// Zero means unlimited.
	MaxHistoryTurns int
	// MaxHistoryTokens bounds the estimated token total of that window.
	// Zero means unlimited.
	MaxHistoryTokens int
}

// Service runs the chat flow: record the user turn, ask the active backend,
// record the assistant turn. It is the only writer of session history.
type Service struct {
	store    session.Store
	backends *backend.Registry
	cache    *cache.Cache
	opts     Options
	tracer   trace.Tracer
	meter    metric.Meter
}

// NewService wires the chat flow together.
func NewService(store session.Store, backends *backend.Registry, responses *cache.Cache, opts Options, tracer trace.Tracer, meter metric.Meter) *Service {
	return &Service{
		store:    store,
		backends: backends,
		cache:    responses,
		opts:     opts,
		tracer:   tracer,
		meter:    meter,
	}
}

// Send records the user's prompt, asks the active backend and records the
// reply. On backend failure the user turn stays recorded, no assistant turn
// is appended, and the error is returned for the transport layer to render.
func (s *Service) Send(ctx context.Context, sessionID, prompt string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "send_message")
	defer span.End()

	mode, client := s.backends.Active()
	history := session.Window(s.store.History(sessionID), s.opts.MaxHistoryTurns, s.opts.MaxHistoryTokens)

	s.store.Append(sessionID, session.Turn{
		Role:      session.RoleUser,
		Content:   prompt,
		Timestamp: time.Now(),
	})
	s.count(ctx, "chat.messages", "User messages handled")

	// Identical question over identical history hits regardless of which
	// session asked first.
	key := cache.Key(mode, history, prompt)
	if cached, ok := s.cache.Get(key); ok {
		slog.Info("cache hit", "session_id", sessionID, "key", key[:16])
		s.count(ctx, "chat.cache.hits", "Responses served from cache")
		s.store.Append(sessionID, session.Turn{
			Role:      session.RoleAssistant,
			Content:   cached,
			Timestamp: time.Now(),
		})
		return cached, nil
	}

	reply, err := client.Generate(ctx, prompt, history)
	if err != nil {
		slog.Error("backend call failed", "session_id", sessionID, "mode", mode, "error", err)
		return "", err
	}

	s.cache.Put(key, reply)
	s.store.Append(sessionID, session.Turn{
		Role:      session.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	})

	slog.Info("assistant response", "session_id", sessionID, "mode", mode, "chars", len(reply))
	return reply, nil
}

// History returns the session's turns in order, creating the session on
// first sight so a rendered page and a later send agree on its start time.
func (s *Service) History(sessionID string) []session.Turn {
	return s.store.GetOrCreate(sessionID).Turns
}

// Clear discards the session's history.
func (s *Service) Clear(sessionID string) {
	s.store.Clear(sessionID)
}

// Mode returns the active backend mode.
func (s *Service) Mode() string {
	mode, _ := s.backends.Active()
	return mode
}

// SetMode switches the active backend. Unknown modes return
// backend.ErrUnknownMode and leave the active one in place.
func (s *Service) SetMode(mode string) error {
	return s.backends.SetActive(mode)
}

// Modes lists the registered backend modes.
func (s *Service) Modes() []string {
	return s.backends.Modes()
}

func (s *Service) count(ctx context.Context, name, description string) {
	counter, err := s.meter.Int64Counter(name, metric.WithDescription(description))
	if err == nil {
		counter.Add(ctx, 1)
	}
}
