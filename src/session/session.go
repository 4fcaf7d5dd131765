// Package session owns conversational state: one Session per live
// Gemini connection, holding the transcript, the pending-message queue
// fed by the channel's receive loop, and the turn processor. The
// Registry is the sole owner of session lifetime.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/mimi-labs/voicestream/src/channel"
	"github.com/mimi-labs/voicestream/src/stream"
)

// Transcript roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

const (
	// DefaultTranscriptCap is the transcript length that triggers
	// trimming; the transcript is cut back to DefaultTranscriptKeep
	// most recent entries once it is exceeded.
	DefaultTranscriptCap  = 10
	DefaultTranscriptKeep = 8

	// contextEntries is how many recent transcript entries feed the
	// responder's context block.
	contextEntries = 5
)

// Entry is one transcript line.
type Entry struct {
	Role string
	Text string
}

// Session is one long-lived conversation pinned to one speech channel.
// The pending queue is single-producer (channel receive loop), single-
// consumer (turn orchestrator); the mutex makes their interleaving
// safe under real parallelism.
type Session struct {
	ID string

	mu            sync.Mutex
	queue         []channel.Message
	transcript    []Entry
	transcriptCap int
	flagged       error
	lastActivity  time.Time

	// turnMu serializes whole turns. The processor and the pending
	// queue belong to at most one running turn at a time.
	turnMu sync.Mutex

	ch   channel.Channel
	proc *stream.Processor
}

// LockTurn blocks until the session's current turn, if any, finishes.
// The holder has exclusive use of the processor and pending queue.
func (s *Session) LockTurn() {
	s.turnMu.Lock()
}

// UnlockTurn releases the turn held by LockTurn.
func (s *Session) UnlockTurn() {
	s.turnMu.Unlock()
}

// Channel returns the session's speech channel.
func (s *Session) Channel() channel.Channel {
	return s.ch
}

// Processor returns the session's turn processor.
func (s *Session) Processor() *stream.Processor {
	return s.proc
}

// PushMessage appends an inbound channel message to the pending queue.
// This is the sink installed at dial time.
func (s *Session) PushMessage(msg channel.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, msg)
	s.lastActivity = time.Now()
}

// PopMessage removes and returns the oldest pending message.
func (s *Session) PopMessage() (channel.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return channel.Message{}, false
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, true
}

// QueueLen returns the number of pending messages.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// ClearQueue discards all pending messages. Called before a new turn
// so stale audio from an abandoned turn never leaks into the next one.
func (s *Session) ClearQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
}

// AppendTranscript records one conversation line, trimming the oldest
// entries once the cap is exceeded.
func (s *Session) AppendTranscript(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, Entry{Role: role, Text: text})
	if len(s.transcript) > s.transcriptCap {
		keep := DefaultTranscriptKeep
		if keep > s.transcriptCap {
			keep = s.transcriptCap
		}
		s.transcript = append(s.transcript[:0], s.transcript[len(s.transcript)-keep:]...)
	}
}

// TranscriptLen returns the number of retained transcript entries.
func (s *Session) TranscriptLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// ContextBlock renders the most recent transcript entries as the
// numbered context the responder model consumes.
func (s *Session) ContextBlock() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if len(s.transcript) > contextEntries {
		start = len(s.transcript) - contextEntries
	}

	block := ""
	for i, entry := range s.transcript[start:] {
		label := "User Asked"
		if entry.Role == RoleAgent {
			label = "Agent Replied"
		}
		if i > 0 {
			block += "\n"
		}
		block += fmt.Sprintf("%d.%s : %s", i+1, label, entry.Text)
	}
	return block
}

// Flag marks the session as degraded after a channel error. The
// session stays usable; the flag is surfaced through status checks.
func (s *Session) Flag(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagged = err
}

// Flagged returns the recorded channel error, if any.
func (s *Session) Flagged() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flagged
}

// LastActivity returns when the channel last produced a message.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}
