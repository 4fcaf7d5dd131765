package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mimi-labs/voicestream/src/channel"
	"github.com/mimi-labs/voicestream/src/logger"
	"github.com/mimi-labs/voicestream/src/stream"
)

// Registry maps session ids to live sessions. It is the only component
// that constructs or destroys a Session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	dialer        channel.Dialer
	procCfg       stream.Config
	transcriptCap int
	log           *logger.Logger
}

// NewRegistry creates a registry that dials one channel per session.
func NewRegistry(dialer channel.Dialer, procCfg stream.Config, transcriptCap int) *Registry {
	if transcriptCap <= 0 {
		transcriptCap = DefaultTranscriptCap
	}
	return &Registry{
		sessions:      make(map[string]*Session),
		dialer:        dialer,
		procCfg:       procCfg,
		transcriptCap: transcriptCap,
		log:           logger.WithPrefix("Sessions"),
	}
}

// Create allocates a session id, opens its speech channel with the
// pending queue wired as the message sink, and stores the session.
// A channel error after creation flags the session but does not tear
// it down.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()

	s := &Session{
		ID:            id,
		transcriptCap: r.transcriptCap,
		proc:          stream.NewProcessor(id, r.procCfg),
	}

	ch, err := r.dialer.Dial(ctx, s.PushMessage, func(err error) {
		r.log.Error("Channel error for session %s: %v", id, err)
		s.Flag(err)
	})
	if err != nil {
		return nil, fmt.Errorf("open speech channel: %w", err)
	}
	s.ch = ch

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.log.Info("Created session %s", id)
	return s, nil
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Has reports whether a session exists for id.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Delete closes the session's channel best-effort and removes it.
// Idempotent; deleting an absent id is a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return
	}

	if err := s.ch.Close(); err != nil {
		r.log.Warn("Closing channel for session %s: %v", id, err)
	}
	r.log.Info("Deleted session %s", id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll tears down every session. Used at process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Delete(id)
	}
}
