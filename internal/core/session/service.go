// Package session admits, tracks, and finalizes voice coaching sessions.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyiyo/voicecoach-backend/internal/core/quota"
	"github.com/steveyiyo/voicecoach-backend/internal/core/voice"
	"github.com/steveyiyo/voicecoach-backend/internal/repo/memory"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
)

var (
	// ErrNotFound indicates an unknown session id.
	ErrNotFound = errors.New("session: not found")
	// ErrAlreadyAttached indicates the session's stream leg is taken. At
	// most one live engine exists per session.
	ErrAlreadyAttached = errors.New("session: stream already attached")
)

// Service wires quota gating, session records, and the live engine together.
type Service struct {
	Repo *memory.Store
	Gate quota.Gate

	engineCfg voice.Config

	mu   sync.Mutex
	live map[string]*voice.Session
}

// NewService creates a session service around a store and a quota gate.
// engineCfg carries the agent credentials and the optional feedback
// generator shared by all sessions.
func NewService(repo *memory.Store, gate quota.Gate, engineCfg voice.Config) *Service {
	if gate == nil {
		gate = quota.Unlimited{}
	}
	return &Service{
		Repo:      repo,
		Gate:      gate,
		engineCfg: engineCfg,
		live:      map[string]*voice.Session{},
	}
}

// Create admits a new session after consulting the usage-quota gate.
func (s *Service) Create(userID string, persona types.PersonaConfig) (*memory.PendingSession, error) {
	category := quota.CategoryOrdinary
	if persona.Premium {
		category = quota.CategoryPremium
	}
	if err := s.Gate.Allow(userID, category); err != nil {
		return nil, err
	}

	rec := &memory.PendingSession{
		ID:        "sess_" + uuid.NewString(),
		UserID:    userID,
		Persona:   persona,
		CreatedAt: time.Now(),
	}
	s.Repo.SaveSession(rec)
	return rec, nil
}

// Attach binds the stream leg to a created session and builds its engine.
// The caller owns running and closing the returned session.
func (s *Service) Attach(id string, sink voice.Sink) (*voice.Session, error) {
	rec, ok := s.Repo.GetSession(id)
	if !ok {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.live[id]; busy || rec.Attached {
		return nil, ErrAlreadyAttached
	}
	rec.Attached = true

	sess := voice.New(id, rec.Persona, s.engineCfg, sink)
	s.live[id] = sess
	return sess, nil
}

// Detach forgets a finished session's live engine.
func (s *Service) Detach(id string) {
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
}

// Summary reports live stats for a session.
func (s *Service) Summary(id string) (types.SummaryResp, bool) {
	rec, ok := s.Repo.GetSession(id)
	if !ok {
		return types.SummaryResp{}, false
	}

	resp := types.SummaryResp{
		SessionID: rec.ID,
		State:     "created",
		StartedAt: rec.CreatedAt.UnixMilli(),
	}

	s.mu.Lock()
	sess := s.live[id]
	s.mu.Unlock()
	if sess != nil {
		sent, received, turns := sess.Stats()
		resp.State = sess.State().String()
		resp.FramesSent = sent
		resp.FramesReceived = received
		resp.Turns = turns
	}
	return resp, true
}

// Finalize persists a finished conversation into the user's history.
func (s *Service) Finalize(id string, item types.HistoryItem) {
	rec, ok := s.Repo.GetSession(id)
	if !ok {
		return
	}
	item.ID = "hist_" + uuid.NewString()
	item.Date = time.Now()
	item.Persona = rec.Persona
	s.Repo.AppendHistory(rec.UserID, item)
}
