package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource scripts one generation call.
type fakeSource struct {
	tokens   []string
	reply    string
	err      error
	delay    time.Duration // silence before finishing
	panicMsg string
}

func (f *fakeSource) ChatStream(ctx context.Context, message string, onToken func(string)) (string, error) {
	for _, t := range f.tokens {
		onToken(t)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type collectWriter struct {
	mu     sync.Mutex
	events []Event
	fail   error // returned from WriteEvent when set
}

func (w *collectWriter) WriteEvent(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.events = append(w.events, ev)
	return nil
}

func (w *collectWriter) all() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Event(nil), w.events...)
}

func serveTurn(t *testing.T, b *Bridge, src Source, message string) ([]Event, *Turn) {
	t.Helper()
	ctx := context.Background()
	turn := b.RunTurn(ctx, src, message)
	w := &collectWriter{}
	require.NoError(t, b.Serve(ctx, turn, w))
	return w.all(), turn
}

func TestRunTurn_TokensInOrderThenDone(t *testing.T) {
	b := NewBridge(time.Minute)
	src := &fakeSource{tokens: []string{"a", "b", "c"}, reply: "abc"}

	events, turn := serveTurn(t, b, src, "hi")

	require.Len(t, events, 4)
	assert.Equal(t, Token("a"), events[0])
	assert.Equal(t, Token("b"), events[1])
	assert.Equal(t, Token("c"), events[2])
	assert.Equal(t, Done("abc"), events[3])

	// channel is closed right after the terminal event
	_, open := <-turn.Events()
	assert.False(t, open)
}

func TestRunTurn_DoneWithoutTokens(t *testing.T) {
	b := NewBridge(time.Minute)
	src := &fakeSource{reply: "hello"}

	events, _ := serveTurn(t, b, src, "hi")

	require.Len(t, events, 1)
	assert.Equal(t, Done("hello"), events[0])
}

func TestRunTurn_ErrorAfterTokens(t *testing.T) {
	b := NewBridge(time.Minute)
	src := &fakeSource{tokens: []string{"a", "b"}, err: errors.New("backend exploded")}

	events, turn := serveTurn(t, b, src, "hi")

	require.Len(t, events, 3)
	assert.Equal(t, Token("a"), events[0])
	assert.Equal(t, Token("b"), events[1])
	assert.Equal(t, Error("backend exploded"), events[2])

	_, open := <-turn.Events()
	assert.False(t, open)
}

func TestServe_PingsDuringSilence(t *testing.T) {
	b := NewBridge(20 * time.Millisecond)
	src := &fakeSource{reply: "late", delay: 90 * time.Millisecond}

	events, _ := serveTurn(t, b, src, "hi")

	require.NotEmpty(t, events)
	assert.Equal(t, Done("late"), events[len(events)-1], "timeout must not terminate the turn")

	pings := 0
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, EventPing, ev.Type)
		pings++
	}
	assert.GreaterOrEqual(t, pings, 1)
}

func TestRunTurn_PanicBecomesTerminalError(t *testing.T) {
	b := NewBridge(time.Minute)
	src := &fakeSource{tokens: []string{"a"}, panicMsg: "boom"}

	events, turn := serveTurn(t, b, src, "hi")

	require.Len(t, events, 2)
	assert.Equal(t, Token("a"), events[0])
	assert.Equal(t, EventError, events[1].Type)
	assert.Contains(t, events[1].Content, "boom")

	_, open := <-turn.Events()
	assert.False(t, open)
}

// stuckSource blocks forever, ignoring ctx, like a backend call with no
// cancellation hook.
type stuckSource struct{}

func (stuckSource) ChatStream(context.Context, string, func(string)) (string, error) {
	select {}
}

func TestServe_ConsumerCancellationStopsWaiting(t *testing.T) {
	b := NewBridge(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	turn := b.RunTurn(ctx, stuckSource{}, "hi")
	w := &collectWriter{}

	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, turn, w) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestRunTurn_ProducerUnwindsAfterCancellation(t *testing.T) {
	b := NewBridge(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	// source honors ctx, as the real providers do
	src := &fakeSource{reply: "never", delay: time.Hour}
	turn := b.RunTurn(ctx, src, "hi")

	cancel()

	// the producer posts its terminal event and closes the channel, so an
	// abandoned turn cannot leak
	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-turn.Events():
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("relay channel never closed after cancellation")
		}
	}
}

func TestServe_WriteFailureStopsTheTurn(t *testing.T) {
	b := NewBridge(time.Minute)
	src := &fakeSource{tokens: []string{"a", "b"}, reply: "ab"}

	turn := b.RunTurn(context.Background(), src, "hi")
	w := &collectWriter{fail: errors.New("broken pipe")}

	err := b.Serve(context.Background(), turn, w)
	require.EqualError(t, err, "broken pipe")
}
