package storage

import (
	"time"

	"deckgen-web/internal/form"
)

// Session is one visitor's form.
type Session struct {
	ID        string
	Form      *form.Controller
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Storage interface {
	CreateSession(session *Session) error
	GetSession(sessionID string) (*Session, error)
	// Touch marks the session as used now.
	Touch(sessionID string) error
	DeleteSession(sessionID string) error
	ListSessions() ([]*Session, error)

	Init() error
	Close() error
}
