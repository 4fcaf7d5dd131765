// Package turn drives one conversation turn: submit text to the
// session's speech channel, drain the pending-message queue through
// the turn processor, and deliver each packaged frame to the client
// connection that requested the turn.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mimi-labs/voicestream/src/logger"
	"github.com/mimi-labs/voicestream/src/session"
	"github.com/mimi-labs/voicestream/src/stream"
)

// State is the orchestrator's position in the turn lifecycle.
type State int

const (
	Idle State = iota
	AwaitingFirstChunk
	Streaming
	Draining
	Complete
	TimedOut
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingFirstChunk:
		return "awaiting-first-chunk"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	case Complete:
		return "complete"
	case TimedOut:
		return "timed-out"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// ErrTimeout marks a turn that hit the wall-clock ceiling before the
// channel signaled end-of-turn.
var ErrTimeout = errors.New("turn timed out")

// Clock abstracts wall time so tests can run the state machine at
// virtual time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Deliverer is the single delivery primitive the orchestrator needs;
// *transports.ClientRegistry satisfies it.
type Deliverer interface {
	Deliver(clientID string, data []byte) bool
}

// Config tunes the orchestrator. Zero values fall back to production
// defaults.
type Config struct {
	Timeout      time.Duration // hard ceiling per turn
	PollInterval time.Duration // empty-queue suspension
	Clock        Clock
}

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 20 * time.Millisecond
)

// Orchestrator runs turns against a client delivery primitive. One
// orchestrator serves all sessions; each Run call is an independent
// turn.
type Orchestrator struct {
	clients Deliverer
	timeout time.Duration
	poll    time.Duration
	clock   Clock
}

// New creates an orchestrator delivering frames through clients.
func New(clients Deliverer, cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	return &Orchestrator{
		clients: clients,
		timeout: cfg.Timeout,
		poll:    cfg.PollInterval,
		clock:   cfg.Clock,
	}
}

// Result summarizes one finished turn.
type Result struct {
	State           State
	FramesDelivered int
	Elapsed         time.Duration
}

// Run executes one turn: speak text on the session's channel, then
// drain the pending queue chunk by chunk until the end-of-turn signal,
// the timeout ceiling, or a channel failure. Frames are delivered to
// clientID strictly in production order. Per-chunk failures are
// absorbed by the processor; only submission failures and the timeout
// end the turn abnormally.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session, clientID, text string) (Result, error) {
	log := logger.WithPrefix("Turn " + sess.ID)
	proc := sess.Processor()

	// One turn at a time per session: an overlapping Run waits for the
	// running turn to finish before touching the processor or queue.
	sess.LockTurn()
	defer sess.UnlockTurn()

	// Turn-scoped processor state: stale buffered audio or
	// fingerprints from an abandoned turn must not leak in.
	proc.Reset()
	sess.ClearQueue()

	start := o.clock.Now()
	res := Result{State: AwaitingFirstChunk}

	if err := sess.Channel().Speak(ctx, text); err != nil {
		res.State = Errored
		res.Elapsed = o.clock.Now().Sub(start)
		o.flushAndDeliver(log, sess, clientID, &res)
		log.Error("Channel submission failed: %v", err)
		return res, fmt.Errorf("submit turn text: %w", err)
	}

	deadline := start.Add(o.timeout)
	lastActivity := start
	rateDetected := false

	for {
		if now := o.clock.Now(); !now.Before(deadline) {
			res.State = TimedOut
			res.Elapsed = now.Sub(start)
			log.Warn("Turn timed out after %v (last activity %v ago)", res.Elapsed, now.Sub(lastActivity))
			o.flushAndDeliver(log, sess, clientID, &res)
			return res, ErrTimeout
		}

		msg, ok := sess.PopMessage()
		if !ok {
			select {
			case <-ctx.Done():
				res.State = Errored
				res.Elapsed = o.clock.Now().Sub(start)
				o.flushAndDeliver(log, sess, clientID, &res)
				log.Error("Turn canceled: %v", ctx.Err())
				return res, ctx.Err()
			case <-o.clock.After(o.poll):
			}
			continue
		}

		lastActivity = o.clock.Now()

		for _, part := range msg.Parts {
			if res.State == AwaitingFirstChunk {
				res.State = Streaming
			}

			if !rateDetected && part.MIMEType != "" {
				if rate := stream.SampleRateFromMIME(part.MIMEType); rate > 0 {
					proc.SetSampleRate(rate)
					rateDetected = true
				}
			}

			if frame := proc.ProcessBinary(part.Data, part.MIMEType); frame != nil {
				o.deliver(log, clientID, frame, &res)
			}
		}

		if msg.TurnComplete {
			res.State = Draining
			o.flushAndDeliver(log, sess, clientID, &res)
			res.State = Complete
			res.Elapsed = o.clock.Now().Sub(start)
			log.Info("Turn complete: %d frames in %v", res.FramesDelivered, res.Elapsed)
			return res, nil
		}
	}
}

// deliver pushes one frame to the client, preserving production order.
// A delivery failure is logged and absorbed; the turn continues.
func (o *Orchestrator) deliver(log *logger.Logger, clientID string, frame []byte, res *Result) {
	if !o.clients.Deliver(clientID, frame) {
		log.Warn("Frame delivery to client %s failed", clientID)
		return
	}
	res.FramesDelivered++
}

// flushAndDeliver drains the processor's remaining audio. Best-effort:
// used on every terminal transition so buffered audio is not lost.
func (o *Orchestrator) flushAndDeliver(log *logger.Logger, sess *session.Session, clientID string, res *Result) {
	if frame := sess.Processor().Flush(); frame != nil {
		o.deliver(log, clientID, frame, res)
	}
}
