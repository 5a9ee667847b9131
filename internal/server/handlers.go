package server

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"PrettyChat/internal/backend"
	"PrettyChat/internal/chat"
	"PrettyChat/internal/session"
)

// Handler serves the chat page and its JSON endpoints.
type Handler struct {
	chat      *chat.Service
	templates *template.Template
}

// NewHandler parses the embedded templates and binds them to the chat
// service.
func NewHandler(chatSvc *chat.Service) (*Handler, error) {
	tmpl, err := template.ParseFS(embeddedFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "error parsing templates")
	}
	return &Handler{chat: chatSvc, templates: tmpl}, nil
}

type indexData struct {
	Messages []session.Turn
	Mode     string
	Modes    []string
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sid := SessionID(r.Context())
	data := indexData{
		Messages: h.chat.History(sid),
		Mode:     h.chat.Mode(),
		Modes:    h.chat.Modes(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "app.html", data); err != nil {
		slog.Error("failed to render chat page", "session_id", sid, "error", err)
	}
}

type sendMessageRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sid := SessionID(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = errors.Wrap(err, "error parsing send_message request")
		slog.Error(err.Error(), "session_id", sid)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "empty"})
		return
	}

	slog.Info("user message", "session_id", sid, "ip", r.RemoteAddr, "prompt", prompt)

	reply, err := h.chat.Send(r.Context(), sid, prompt)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, backend.ErrUnavailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, backend.ErrBackend):
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "reply": reply})
}

type setModeRequest struct {
	Mode string `json:"mode"`
}

func (h *Handler) handleSetMode(w http.ResponseWriter, r *http.Request) {
	sid := SessionID(r.Context())

	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = errors.Wrap(err, "error parsing set_mode request")
		slog.Error(err.Error(), "session_id", sid)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Unknown modes are ignored and the active mode reported back, so a
	// stale page cannot knock the service into a broken state.
	if err := h.chat.SetMode(req.Mode); err != nil {
		slog.Warn("rejected mode change", "session_id", sid, "ip", r.RemoteAddr, "mode", req.Mode)
	} else {
		slog.Info("mode changed", "session_id", sid, "ip", r.RemoteAddr, "mode", req.Mode)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": h.chat.Mode()})
}

func (h *Handler) handleClearChat(w http.ResponseWriter, r *http.Request) {
	sid := SessionID(r.Context())
	h.chat.Clear(sid)
	slog.Info("chat history cleared", "session_id", sid, "ip", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
