package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
)

// NewRouter wires the middleware chain and all chat routes.
func NewRouter(h *Handler, codec *securecookie.SecureCookie) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(EnsureSession(codec))
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleIndex)
	r.Post("/send_message", h.handleSendMessage)
	r.Post("/set_mode", h.handleSetMode)
	r.Post("/clear_chat", h.handleClearChat)
	r.Get("/health", h.handleHealth)
	r.Handle("/static/*", http.FileServer(http.FS(embeddedFS)))

	return r
}
