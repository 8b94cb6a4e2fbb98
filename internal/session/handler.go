package session

import (
	"context"
	"strings"
	"sync"

	"github.com/mgp-travel/tourchat/internal/ai"
)

// Handler is the stateful conversational context of one session. It owns the
// accumulated history and the provider the session talks to, and lives until
// process exit (the registry never evicts).
//
// The mutex serializes turns: overlapping requests against the same session
// run one after another instead of racing on the history.
type Handler struct {
	mu           sync.Mutex
	provider     ai.Provider
	model        string
	systemPrompt string
	window       int

	history []ai.Message
}

// Config carries the per-session model settings a new Handler is built with.
type Config struct {
	Provider     ai.Provider
	Model        string
	SystemPrompt string
	// Window caps how many history messages are sent to the provider per
	// turn. The full history stays in memory regardless.
	Window int
}

func NewHandler(cfg Config) *Handler {
	if cfg.Window <= 0 || cfg.Window > 100 {
		cfg.Window = 20
	}
	return &Handler{
		provider:     cfg.Provider,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		window:       cfg.Window,
	}
}

// contextMessages builds the provider input: optional system prompt, the most
// recent window of history, then the new user message. Caller holds mu.
func (h *Handler) contextMessages(message string) []ai.Message {
	recent := h.history
	if len(recent) > h.window-1 {
		recent = recent[len(recent)-(h.window-1):]
	}

	msgs := make([]ai.Message, 0, len(recent)+2)
	if h.systemPrompt != "" {
		msgs = append(msgs, ai.Message{Role: "system", Content: h.systemPrompt})
	}
	msgs = append(msgs, recent...)
	return append(msgs, ai.Message{Role: "user", Content: message})
}

// ChatStream runs one turn. Each provider chunk is forwarded to onToken (when
// non-nil) as it arrives, and the full reply is returned at the end. History
// advances only when the turn succeeds: on error the handler is left exactly
// as it was.
func (h *Handler) ChatStream(ctx context.Context, message string, onToken func(token string)) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := h.contextMessages(message)

	var full string
	if sp, ok := h.provider.(ai.StreamProvider); ok {
		chunks, errs := sp.StreamChat(ctx, msgs)

		var b strings.Builder
		for c := range chunks {
			b.WriteString(c)
			if onToken != nil {
				onToken(c)
			}
		}
		// Both channels are closed by the provider when streaming ends, so
		// this read cannot block past stream end.
		if err := <-errs; err != nil {
			return "", err
		}
		full = b.String()
	} else {
		reply, err := h.provider.Chat(ctx, msgs)
		if err != nil {
			return "", err
		}
		full = reply
	}

	h.history = append(h.history,
		ai.Message{Role: "user", Content: message},
		ai.Message{Role: "assistant", Content: full},
	)
	return full, nil
}

// Chat runs one turn without token callbacks.
func (h *Handler) Chat(ctx context.Context, message string) (string, error) {
	return h.ChatStream(ctx, message, nil)
}

// Reset drops the accumulated history. Model settings are kept.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = nil
}

// HistoryLen reports how many messages the handler has accumulated.
func (h *Handler) HistoryLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.history)
}

// History returns a copy of the accumulated conversation.
func (h *Handler) History() []ai.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ai.Message(nil), h.history...)
}

// Model reports the model label the session was configured with.
func (h *Handler) Model() string { return h.model }
