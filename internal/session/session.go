package session

import "time"

// Turn roles. The completion backends expect exactly these strings.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn represents a single chat utterance
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents one visitor's chat history
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Turns     []Turn    `json:"turns"`
}
