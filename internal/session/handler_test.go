package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgp-travel/tourchat/internal/ai"
)

// plainProvider answers without streaming and records what it was sent.
type plainProvider struct {
	reply string
	err   error
	last  []ai.Message
}

func (p *plainProvider) Chat(_ context.Context, messages []ai.Message) (string, error) {
	p.last = append([]ai.Message(nil), messages...)
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

// streamingProvider additionally streams scripted chunks.
type streamingProvider struct {
	plainProvider
	chunks []string
}

func (p *streamingProvider) StreamChat(_ context.Context, messages []ai.Message) (<-chan string, <-chan error) {
	p.last = append([]ai.Message(nil), messages...)
	out := make(chan string, len(p.chunks))
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, c := range p.chunks {
			out <- c
		}
		if p.err != nil {
			errs <- p.err
		}
	}()
	return out, errs
}

func TestHandler_HistoryGrowsMonotonically(t *testing.T) {
	h := NewHandler(Config{Provider: &plainProvider{reply: "ok"}})

	_, err := h.Chat(context.Background(), "first")
	require.NoError(t, err)
	after1 := h.HistoryLen()

	_, err = h.Chat(context.Background(), "second")
	require.NoError(t, err)
	after2 := h.HistoryLen()

	assert.Equal(t, 2, after1) // user + assistant
	assert.GreaterOrEqual(t, after2, after1)
	assert.Equal(t, 4, after2)
}

func TestHandler_StreamForwardsTokens(t *testing.T) {
	p := &streamingProvider{chunks: []string{"He", "llo", "!"}}
	h := NewHandler(Config{Provider: p})

	var got []string
	full, err := h.ChatStream(context.Background(), "hi", func(tok string) {
		got = append(got, tok)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"He", "llo", "!"}, got)
	assert.Equal(t, "Hello!", full)
	assert.Equal(t, 2, h.HistoryLen())
}

func TestHandler_ErrorLeavesHistoryUntouched(t *testing.T) {
	p := &streamingProvider{chunks: []string{"par"}}
	p.err = errors.New("backend down")
	h := NewHandler(Config{Provider: p})

	_, err := h.ChatStream(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.Equal(t, 0, h.HistoryLen())
}

func TestHandler_ContextWindowAndSystemPrompt(t *testing.T) {
	p := &plainProvider{reply: "ok"}
	h := NewHandler(Config{Provider: p, SystemPrompt: "be helpful", Window: 3})

	for _, m := range []string{"one", "two", "three"} {
		_, err := h.Chat(context.Background(), m)
		require.NoError(t, err)
	}
	// 6 history messages by now; window 3 means 2 recent + the new user msg
	_, err := h.Chat(context.Background(), "four")
	require.NoError(t, err)

	require.Len(t, p.last, 4) // system + 2 recent + new user
	assert.Equal(t, "system", p.last[0].Role)
	assert.Equal(t, "be helpful", p.last[0].Content)
	assert.Equal(t, ai.Message{Role: "user", Content: "four"}, p.last[len(p.last)-1])
}

func TestHandler_ResetClearsHistoryOnly(t *testing.T) {
	h := NewHandler(Config{Provider: &plainProvider{reply: "ok"}, Model: "ollama"})

	_, err := h.Chat(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, 2, h.HistoryLen())

	h.Reset()
	assert.Equal(t, 0, h.HistoryLen())
	assert.Equal(t, "ollama", h.Model())
}
