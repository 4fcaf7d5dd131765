package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/mimi-labs/voicestream/src/channel"
	"github.com/mimi-labs/voicestream/src/stream"
)

type fakeChannel struct {
	mu     sync.Mutex
	closed int
	spoken []string
}

func (c *fakeChannel) Speak(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spoken = append(c.spoken, text)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

type fakeDialer struct {
	mu      sync.Mutex
	dialed  []*fakeChannel
	sinks   []channel.Sink
	onError []func(error)
	fail    error
}

func (d *fakeDialer) Dial(ctx context.Context, sink channel.Sink, onError func(error)) (channel.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	ch := &fakeChannel{}
	d.dialed = append(d.dialed, ch)
	d.sinks = append(d.sinks, sink)
	d.onError = append(d.onError, onError)
	return ch, nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{}
	return NewRegistry(d, stream.DefaultConfig(), 0), d
}

func TestRegistry_CreateGetDelete(t *testing.T) {
	r, d := newTestRegistry(t)

	s, err := r.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" {
		t.Error("session has no id")
	}
	if s.Processor() == nil {
		t.Error("session has no processor")
	}

	got, ok := r.Get(s.ID)
	if !ok || got != s {
		t.Fatal("Get did not return the created session")
	}
	if !r.Has(s.ID) || r.Len() != 1 {
		t.Error("registry bookkeeping wrong after create")
	}

	r.Delete(s.ID)
	if r.Has(s.ID) || r.Len() != 0 {
		t.Error("session still present after delete")
	}
	if d.dialed[0].closed != 1 {
		t.Errorf("channel closed %d times, want 1", d.dialed[0].closed)
	}

	// Idempotent: deleting again (or an unknown id) is a no-op.
	r.Delete(s.ID)
	r.Delete("no-such-session")
	if d.dialed[0].closed != 1 {
		t.Error("second delete closed the channel again")
	}
}

func TestRegistry_CreateFailsWhenDialFails(t *testing.T) {
	d := &fakeDialer{fail: errors.New("upstream down")}
	r := NewRegistry(d, stream.DefaultConfig(), 0)

	if _, err := r.Create(context.Background()); err == nil {
		t.Fatal("expected error when dial fails")
	}
	if r.Len() != 0 {
		t.Error("failed create left a session behind")
	}
}

func TestRegistry_SinkFeedsPendingQueue(t *testing.T) {
	r, d := newTestRegistry(t)

	s, err := r.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	d.sinks[0](channel.Message{Parts: []channel.Part{{Data: []byte("a")}}})
	d.sinks[0](channel.Message{TurnComplete: true})

	if got := s.QueueLen(); got != 2 {
		t.Fatalf("queue length = %d, want 2", got)
	}

	first, ok := s.PopMessage()
	if !ok || len(first.Parts) != 1 {
		t.Fatal("first pop lost the audio part")
	}
	second, ok := s.PopMessage()
	if !ok || !second.TurnComplete {
		t.Fatal("second pop lost the turn marker")
	}
	if _, ok := s.PopMessage(); ok {
		t.Error("pop on empty queue reported a message")
	}
}

func TestRegistry_ChannelErrorFlagsSession(t *testing.T) {
	r, d := newTestRegistry(t)

	s, err := r.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Flagged() != nil {
		t.Fatal("fresh session already flagged")
	}

	cause := errors.New("stream reset")
	d.onError[0](cause)

	if got := s.Flagged(); got != cause {
		t.Errorf("Flagged() = %v, want %v", got, cause)
	}
	// Flagged sessions stay registered and usable.
	if !r.Has(s.ID) {
		t.Error("flagged session was removed")
	}
}

func TestSession_TranscriptCapAndContext(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 12; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAgent
		}
		s.AppendTranscript(role, strings.Repeat("x", i+1))
	}

	// Cap is 10 with trim-to-8 hysteresis: 11th entry trims to 8,
	// 12th brings it back to 9.
	if got := s.TranscriptLen(); got != 9 {
		t.Errorf("transcript length = %d, want 9", got)
	}

	block := s.ContextBlock()
	lines := strings.Split(block, "\n")
	if len(lines) != 5 {
		t.Fatalf("context block has %d lines, want 5", len(lines))
	}
	if !strings.HasPrefix(lines[0], "1.") {
		t.Errorf("first context line not numbered: %q", lines[0])
	}
	if !strings.Contains(block, "User Asked") || !strings.Contains(block, "Agent Replied") {
		t.Errorf("context block missing role labels:\n%s", block)
	}
}

func TestSession_ClearQueue(t *testing.T) {
	r, d := newTestRegistry(t)
	s, err := r.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	d.sinks[0](channel.Message{TurnComplete: true})
	d.sinks[0](channel.Message{TurnComplete: true})
	s.ClearQueue()
	if s.QueueLen() != 0 {
		t.Error("queue not empty after clear")
	}
}
