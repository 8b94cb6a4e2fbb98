package stream

import (
	"context"
	"fmt"
	"time"
)

// Source runs one generation call. It may invoke onToken any number of times
// before returning; the final reply is returned whole. A Source that streams
// nothing and only returns the reply is valid.
type Source interface {
	ChatStream(ctx context.Context, message string, onToken func(token string)) (string, error)
}

// DefaultKeepAlive is the maximum producer silence tolerated before the
// consumer synthesizes a ping frame.
const DefaultKeepAlive = 60 * time.Second

const eventBuffer = 16

// Turn is one in-flight chat turn: a producer goroutine feeding an ordered
// event channel, consumed by exactly one writer via Serve.
type Turn struct {
	events chan Event
	ctx    context.Context
}

// Bridge converts Source calls into ordered event streams.
type Bridge struct {
	KeepAlive time.Duration
}

func NewBridge(keepAlive time.Duration) *Bridge {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &Bridge{KeepAlive: keepAlive}
}

// RunTurn starts src on its own goroutine and returns the Turn immediately.
// The producer posts every token in order, then exactly one terminal event
// (Done on success, Error on failure or panic), then closes the channel.
// If ctx is cancelled the producer stops posting and exits; the channel is
// still closed so a concurrent Serve never hangs.
func (b *Bridge) RunTurn(ctx context.Context, src Source, message string) *Turn {
	t := &Turn{events: make(chan Event, eventBuffer), ctx: ctx}

	go func() {
		defer close(t.events)
		defer func() {
			if r := recover(); r != nil {
				t.post(Error(fmt.Sprintf("internal error: %v", r)))
			}
		}()

		full, err := src.ChatStream(ctx, message, func(token string) {
			t.post(Token(token))
		})
		if err != nil {
			t.post(Error(err.Error()))
			return
		}
		t.post(Done(full))
	}()

	return t
}

// post delivers ev to the consumer, giving up if the turn's context is
// cancelled so an abandoned consumer can never strand the producer.
func (t *Turn) post(ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.ctx.Done():
		return false
	}
}

// Events exposes the relay channel for consumers that drive their own loop.
func (t *Turn) Events() <-chan Event { return t.events }

// EventWriter receives events in arrival order. WriteEvent must not be called
// concurrently.
type EventWriter interface {
	WriteEvent(ev Event) error
}

// Serve pumps the turn's events into w until the terminal event, a write
// failure, or ctx cancellation. Whenever the producer stays silent for the
// keep-alive interval a Ping is written directly to w (it never enters the
// relay channel) and waiting resumes; the timeout alone never ends the turn.
func (b *Bridge) Serve(ctx context.Context, t *Turn, w EventWriter) error {
	timer := time.NewTimer(b.KeepAlive)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-t.events:
			if !ok {
				// Producer exited without a terminal event. Guaranteed not to
				// happen by RunTurn; surface it rather than hang.
				return w.WriteEvent(Error("stream ended unexpectedly"))
			}
			if err := w.WriteEvent(ev); err != nil {
				return err
			}
			if ev.Terminal() {
				return nil
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(b.KeepAlive)

		case <-timer.C:
			if err := w.WriteEvent(Ping()); err != nil {
				return err
			}
			timer.Reset(b.KeepAlive)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
