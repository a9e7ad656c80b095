package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/tutorbot/internal/core"
	"github.com/sandevgo/tutorbot/pkg/log"
)

const (
	DefaultSessionIdleTTL = 2 * time.Hour

	sessionSweepInterval = 5 * time.Minute
)

// SessionInit carries the course position a conversation starts from.
type SessionInit struct {
	Day        int
	LanguageID string
	TaskID     string
}

type session struct {
	data       core.Session
	day        int
	languageID string
	taskID     string
}

// SessionStore owns every session and message it holds; callers receive
// copies. One store instance exists per process, created at startup and
// shut down at teardown.
//
// Sessions idle longer than idleTTL are evicted by a background sweep
// (see Start), so an abandoned conversation cannot grow the process
// without bound.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	idleTTL  time.Duration
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
}

func NewSessionStore(idleTTL time.Duration) *SessionStore {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	return &SessionStore{
		sessions: make(map[string]*session),
		idleTTL:  idleTTL,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Create allocates a session with a fresh opaque id and no messages.
func (s *SessionStore) Create(ctx context.Context, learnerID string, init SessionInit) core.Session {
	now := s.now()
	sess := &session{
		data: core.Session{
			ID:           uuid.NewString(),
			LearnerID:    learnerID,
			StartedAt:    now,
			LastActivity: now,
		},
		day:        init.Day,
		languageID: init.LanguageID,
		taskID:     init.TaskID,
	}

	s.mu.Lock()
	s.sessions[sess.data.ID] = sess
	s.mu.Unlock()

	log.FromCtx(ctx).Debug().
		Str("session_id", sess.data.ID).
		Str("learner_id", learnerID).
		Str("language_id", init.LanguageID).
		Int("day", init.Day).
		Msg("session created")
	return s.snapshot(sess)
}

// Get returns a read-only copy of the session or core.ErrSessionNotFound.
func (s *SessionStore) Get(id string) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return core.Session{}, core.ErrSessionNotFound
	}
	return s.snapshot(sess), nil
}

// AddMessage appends to the session and bumps its activity time. A
// missing session is logged and ignored: losing a message on an
// already-cleared conversation is not user-visible.
//
// The store fills in the message id, session id and timestamp, keeping
// timestamps non-decreasing within the session.
func (s *SessionStore) AddMessage(ctx context.Context, sessionID string, msg core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		log.FromCtx(ctx).Warn().
			Str("session_id", sessionID).
			Str("role", string(msg.Role)).
			Msg("dropping message for unknown session")
		return
	}

	now := s.now()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.SessionID = sessionID
	msg.Timestamp = now.UnixMilli()
	if n := len(sess.data.Messages); n > 0 && msg.Timestamp < sess.data.Messages[n-1].Timestamp {
		msg.Timestamp = sess.data.Messages[n-1].Timestamp
	}

	sess.data.Messages = append(sess.data.Messages, msg)
	sess.data.LastActivity = now
}

// GetRecentMessages returns the last n messages in insertion order, or
// an empty slice if the session is absent.
func (s *SessionStore) GetRecentMessages(sessionID string, n int) []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || n <= 0 {
		return nil
	}

	msgs := sess.data.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Clear removes the session and all its messages. Idempotent.
func (s *SessionStore) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Start runs the idle-eviction sweep until Shutdown or ctx cancellation.
func (s *SessionStore) Start(ctx context.Context) error {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-ticker.C:
			if evicted := s.evictIdle(); evicted > 0 {
				log.FromCtx(ctx).Info().Int("count", evicted).Msg("evicted idle sessions")
			}
		case <-s.stop:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *SessionStore) Shutdown(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}

func (s *SessionStore) evictIdle() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.data.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *SessionStore) snapshot(sess *session) core.Session {
	out := sess.data
	out.Messages = make([]core.Message, len(sess.data.Messages))
	copy(out.Messages, sess.data.Messages)
	return out
}
