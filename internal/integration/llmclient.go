package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/pkg/models"
	"go.uber.org/zap"
)

// Provider endpoints used when settings leave api_url empty.
const (
	DefaultOpenAIURL    = "https://api.openai.com/v1/chat/completions"
	DefaultAnthropicURL = "https://api.anthropic.com/v1/messages"

	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

// LLMClient sends chat requests to an OpenAI-compatible or Anthropic
// endpoint. Settings are read on every call so edits apply immediately.
type LLMClient struct {
	settings func() models.Settings
	logger   *zap.Logger
	doer     func(*http.Request, time.Duration) (*http.Response, error)
}

// NewLLMClient creates a client that reads its settings from settings.
func NewLLMClient(settings func() models.Settings, logger *zap.Logger) *LLMClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClient{
		settings: settings,
		logger:   logger,
		doer: func(req *http.Request, timeout time.Duration) (*http.Response, error) {
			return (&http.Client{Timeout: timeout}).Do(req)
		},
	}
}

type openAIRequest struct {
	Model    string         `json:"model"`
	Messages []core.Message `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type anthropicRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	System    string         `json:"system,omitempty"`
	Messages  []core.Message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete performs one POST and returns the reply text. Failures are
// returned as core.ErrNotConfigured, *core.HTTPStatusError,
// *core.TransportError or *core.ReadError. There are no retries.
func (c *LLMClient) Complete(ctx context.Context, messages []core.Message) (string, error) {
	s := c.settings()
	if !core.AIConfigured(s) {
		return "", core.ErrNotConfigured
	}
	anthropic := core.IsAnthropicModel(s.Model)

	body, url, err := c.encode(s, anthropic, messages)
	if err != nil {
		return "", &core.TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &core.TransportError{Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if anthropic {
		req.Header.Set("x-api-key", s.AnthropicAPIKey)
		req.Header.Set("anthropic-version", anthropicVersion)
	} else {
		req.Header.Set("Authorization", "Bearer "+s.OpenAIAPIKey)
	}

	timeout := time.Duration(s.TimeoutSecs) * time.Second
	c.logger.Debug("sending ai request",
		zap.String("model", s.Model),
		zap.String("url", url),
		zap.Duration("timeout", timeout))

	resp, err := c.doer(req, timeout)
	if err != nil {
		return "", &core.TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &core.ReadError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &core.HTTPStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if anthropic {
		return decodeAnthropic(data)
	}
	return decodeOpenAI(data)
}

func (c *LLMClient) encode(s models.Settings, anthropic bool, messages []core.Message) ([]byte, string, error) {
	url := strings.TrimSpace(s.APIURL)
	if !anthropic {
		if url == "" {
			url = DefaultOpenAIURL
		}
		body, err := json.Marshal(openAIRequest{Model: s.Model, Messages: messages})
		if err != nil {
			return nil, "", fmt.Errorf("encoding request: %w", err)
		}
		return body, url, nil
	}

	if url == "" {
		url = DefaultAnthropicURL
	}
	req := anthropicRequest{Model: s.Model, MaxTokens: anthropicMaxTokens}
	for _, m := range messages {
		if m.Role == "system" {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, m)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("encoding request: %w", err)
	}
	return body, url, nil
}

func decodeOpenAI(data []byte) (string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &core.ReadError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", &core.ReadError{Err: errors.New("response has no choices[0].message.content")}
	}
	return *resp.Choices[0].Message.Content, nil
}

func decodeAnthropic(data []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &core.ReadError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	var b strings.Builder
	found := false
	for _, part := range resp.Content {
		if part.Type == "text" {
			b.WriteString(part.Text)
			found = true
		}
	}
	if !found {
		return "", &core.ReadError{Err: errors.New("response has no text content")}
	}
	return b.String(), nil
}
