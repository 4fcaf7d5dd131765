// Package channel abstracts the external speech-generation session:
// submit text, receive an asynchronous stream of binary audio messages,
// observe an end-of-turn signal. The concrete implementation talks to
// Gemini Live; tests substitute a fake that pushes canned messages.
package channel

import (
	"context"
)

// Part is one binary audio payload extracted from a channel message.
type Part struct {
	Data     []byte
	MIMEType string
}

// Message is one unit from the channel: zero or more audio parts plus
// an optional end-of-turn marker.
type Message struct {
	Parts        []Part
	TurnComplete bool
}

// Sink receives every inbound message from a channel's receive loop,
// in arrival order. Implementations must not block for long; the
// session's pending queue append satisfies that.
type Sink func(Message)

// Channel is an open speech-generation session.
type Channel interface {
	// Speak submits a line of text to be spoken. Audio for the turn
	// arrives asynchronously through the Sink the channel was dialed
	// with.
	Speak(ctx context.Context, text string) error

	// Close tears the session down. Idempotent.
	Close() error
}

// Dialer opens channels. The session registry holds one dialer and
// dials a dedicated channel per session.
type Dialer interface {
	// Dial opens a channel. sink is invoked for every inbound
	// message; onError is invoked once if the receive loop dies,
	// after which no further messages arrive.
	Dial(ctx context.Context, sink Sink, onError func(error)) (Channel, error)
}
