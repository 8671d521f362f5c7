package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"deckgen-web/internal/artifact"
	"deckgen-web/internal/config"
	"deckgen-web/internal/form"
	"deckgen-web/internal/storage"
	"deckgen-web/pkg/logger"

	"github.com/google/uuid"
)

// FormService owns one form controller per visitor session and the shared
// artifact store behind them.
type FormService struct {
	storage   storage.Storage
	artifacts *artifact.Store
	generator form.Generator
	policy    form.RejectPolicy
	fileName  string
	config    config.SessionConfig

	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewFormService(cfg *config.Config, gen form.Generator) *FormService {
	store := storage.NewMemoryStorage()
	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize session storage: %v", err)
	}

	s := &FormService{
		storage:   store,
		artifacts: artifact.NewStore(cfg.Artifact.MaxTotalBytes),
		generator: gen,
		policy:    form.RejectPolicy(cfg.Form.RejectPolicy),
		fileName:  cfg.Artifact.FileName,
		config:    cfg.Session,
		stop:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

// Session returns the visitor's session, creating a fresh one when the id is
// empty or unknown (expired sessions come back empty).
func (s *FormService) Session(sessionID string) (*storage.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		session, err := s.storage.GetSession(sessionID)
		if err == nil {
			if err := s.storage.Touch(sessionID); err != nil {
				return nil, false, fmt.Errorf("failed to touch session: %w", err)
			}
			return session, false, nil
		}
		if !errors.Is(err, storage.ErrSessionNotFound) {
			return nil, false, fmt.Errorf("failed to get session: %w", err)
		}
	}

	session, err := s.createSessionLocked()
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

func (s *FormService) createSessionLocked() (*storage.Session, error) {
	id := uuid.New().String()
	now := time.Now()
	session := &storage.Session{
		ID: id,
		Form: form.NewController(form.Options{
			Generator:    s.generator,
			Artifacts:    s.artifacts,
			RejectPolicy: s.policy,
			FileName:     s.fileName,
			Label:        id,
		}),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	logger.Debugf("Created form session %s", id)
	return session, nil
}

// Download returns the artifact only if it is the session's current result.
func (s *FormService) Download(sessionID, artifactID string) (*artifact.Artifact, error) {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, artifact.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	result := session.Form.Snapshot().Result
	if result == nil || result.ID != artifactID {
		return nil, artifact.ErrNotFound
	}
	return s.artifacts.Open(artifactID)
}

// DeleteSession tears the session down and frees its artifacts.
func (s *FormService) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return fmt.Errorf("session not found: %s", sessionID)
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	session.Form.Close()
	if err := s.storage.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpired removes sessions idle since before now-TTL and returns how
// many were dropped.
func (s *FormService) CleanupExpired(now time.Time) int {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		logger.Errorf("Failed to list sessions for cleanup: %v", err)
		return 0
	}

	cutoff := now.Add(-s.config.TTL)
	removed := 0
	for _, session := range sessions {
		if !session.UpdatedAt.Before(cutoff) {
			continue
		}
		if session.Form.Snapshot().IsSubmitting {
			continue
		}
		if err := s.DeleteSession(session.ID); err != nil {
			logger.Errorf("Failed to delete expired session %s: %v", session.ID, err)
			continue
		}
		removed++
		logger.Infof("Cleaned up expired session: %s", session.ID)
	}
	return removed
}

func (s *FormService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.CleanupExpired(now)
		case <-s.stop:
			return
		}
	}
}

func (s *FormService) Artifacts() *artifact.Store {
	return s.artifacts
}

// Close stops the cleanup loop and tears down every session.
func (s *FormService) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()

	sessions, err := s.storage.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, session := range sessions {
		session.Form.Close()
	}
	return s.storage.Close()
}
