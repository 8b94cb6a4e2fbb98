package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// openAICompat implements Chat and StreamChat against any backend exposing
// the OpenAI chat-completions wire protocol (OpenRouter, YandexGPT, ...).
// Concrete providers wrap it with their base URL, auth and model naming.
type openAICompat struct {
	name    string // used as the error prefix, e.g. "openrouter"
	baseURL string
	apiKey  string
	model   string
	header  func(h http.Header) // optional extra request headers
	client  *http.Client
}

type compatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatChatReq struct {
	Model    string      `json:"model"`
	Messages []compatMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type compatChatResp struct {
	Choices []struct {
		Message compatMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type compatStreamResp struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *openAICompat) newRequest(ctx context.Context, stream bool, messages []Message) (*http.Request, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, fmt.Errorf("%s: api key is required", p.name)
	}
	model := strings.TrimSpace(p.model)
	if model == "" {
		return nil, fmt.Errorf("%s: model is required", p.name)
	}

	body := compatChatReq{Model: model, Stream: stream}
	body.Messages = make([]compatMsg, 0, len(messages))
	for _, m := range messages {
		body.Messages = append(body.Messages, compatMsg{Role: m.Role, Content: m.Content})
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.baseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.header != nil {
		p.header(req.Header)
	}
	return req, nil
}

func (p *openAICompat) httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s", p.name, msg)
}

func (p *openAICompat) Chat(ctx context.Context, messages []Message) (string, error) {
	req, err := p.newRequest(ctx, false, messages)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", p.httpError(resp)
	}

	var decoded compatChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", p.name)
	}
	return decoded.Choices[0].Message.Content, nil
}

// StreamChat reads the backend's SSE stream and forwards content deltas.
func (p *openAICompat) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		req, err := p.newRequest(ctx, true, messages)
		if err != nil {
			errs <- err
			return
		}

		// Streaming turns can outlive the regular per-request timeout;
		// rely on ctx for cancellation instead.
		client := &http.Client{Transport: p.client.Transport}

		resp, err := client.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- p.httpError(resp)
			return
		}

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var decoded compatStreamResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				errs <- err
				return
			}
			if decoded.Error != nil && decoded.Error.Message != "" {
				errs <- errors.New(decoded.Error.Message)
				return
			}
			if len(decoded.Choices) == 0 {
				continue
			}
			if delta := decoded.Choices[0].Delta.Content; delta != "" {
				chunks <- delta
			}
		}

		if err := sc.Err(); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

func newCompatClient() *http.Client {
	return &http.Client{Timeout: 90 * time.Second}
}
