package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseFrame(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"delta": map[string]string{"content": content}}},
	})
	return fmt.Sprintf("data: %s\n\n", b)
}

func TestOpenRouterStreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "tourchat", r.Header.Get("X-Title"))

		var req compatChatReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		fmt.Fprint(w, sseFrame("Good "))
		fmt.Fprint(w, sseFrame("morning"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "test-key", "openrouter/auto", "", "tourchat")
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	got, err := collectStream(t, chunks, errs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Good ", "morning"}, got)
}

func TestOpenRouterChat_RequiresAPIKey(t *testing.T) {
	p := NewOpenRouterProvider("http://localhost:0", "", "openrouter/auto", "", "")
	_, err := p.Chat(context.Background(), nil)
	require.ErrorContains(t, err, "api key is required")
}

func TestOpenRouterChat_SurfacesBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "insufficient credits"},
		})
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "k", "m", "", "")
	_, err := p.Chat(context.Background(), nil)
	require.EqualError(t, err, "insufficient credits")
}

func TestYandexGPT_ModelURI(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req compatChatReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "ok"}}},
		})
	}))
	defer srv.Close()

	p := NewYandexGPTProvider(srv.URL, "key", "b1folder", "yandexgpt/latest")
	reply, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, "gpt://b1folder/yandexgpt/latest", gotModel)
}

func TestRegistry_RoutesByName(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Ollama", func(_ context.Context, model string) (Provider, error) {
		return NewOllamaProvider("", model), nil
	})

	p, err := reg.Get(context.Background(), " ollama ", "llama3:latest")
	require.NoError(t, err)
	require.IsType(t, &OllamaProvider{}, p)

	_, err = reg.Get(context.Background(), "nope", "")
	require.ErrorContains(t, err, "unknown ai provider")
}
