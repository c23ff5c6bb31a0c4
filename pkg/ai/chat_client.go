package ai

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
	"unicode/utf8"

	"golang.org/x/time/rate"
	"quotecards/internal/metrics"
)

const maxReplyBytes = 32 << 20

// ChatClientConfig configures the transport to an OpenAI-compatible chat completions API.
// BaseURL includes the version prefix, e.g. "https://gateway.example.com/v1".
type ChatClientConfig struct {
	Surface           string
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Metrics           *metrics.Metrics
}

// ChatClient posts chat completion requests. Calls are single attempt; the limiter only spaces
// them out.
type ChatClient struct {
	surface    string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
}

func NewChatClient(cfg ChatClientConfig) (*ChatClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base url required", ErrNotConfigured)
	}
	if cfg.Surface == "" {
		cfg.Surface = "chat"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &ChatClient{
		surface:    cfg.Surface,
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
		limiter:    limiter,
		metrics:    cfg.Metrics,
	}, nil
}

// ChatRequest is the body of one completion call.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatReply is the first choice's message. Content stays raw because image models answer with
// a string, an array of content parts, or nothing at all.
type ChatReply struct {
	Content json.RawMessage   `json:"content"`
	Images  []json.RawMessage `json:"images"`
}

// Text returns the reply content as plain text, joining text parts when the content is an array.
func (r ChatReply) Text() string {
	var s string
	if err := json.Unmarshal(r.Content, &s); err == nil {
		return s
	}
	var parts []contentPart
	if err := json.Unmarshal(r.Content, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" || (p.Type == "" && p.Text != "") {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatReply `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends req to {baseURL}/chat/completions.
func (c *ChatClient) Complete(ctx context.Context, req ChatRequest) (reply ChatReply, err error) {
	if strings.TrimSpace(req.Model) == "" {
		return ChatReply{}, fmt.Errorf("%s: model required", c.surface)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return ChatReply{}, fmt.Errorf("%s rate limit wait: %w", c.surface, err)
		}
	}
	start := time.Now()
	defer func() { c.observe(start, err) }()

	body, err := json.Marshal(req)
	if err != nil {
		return ChatReply{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatReply{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ChatReply{}, fmt.Errorf("%s request: %w", c.surface, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return ChatReply{}, fmt.Errorf("%s read body: %w", c.surface, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Surface: c.surface, StatusCode: resp.StatusCode}
		var errResp chatErrorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error.Message != "" {
			statusErr.Message = errResp.Error.Message
		} else {
			statusErr.Message = truncate(strings.TrimSpace(string(raw)), 300)
		}
		return ChatReply{}, statusErr
	}

	var chatResp chatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return ChatReply{}, fmt.Errorf("%s decode: %w", c.surface, err)
	}
	if len(chatResp.Choices) == 0 {
		return ChatReply{}, fmt.Errorf("%s: %w", c.surface, ErrEmptyResponse)
	}
	return chatResp.Choices[0].Message, nil
}

func (c *ChatClient) observe(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		outcome = "http_error"
	case err != nil:
		outcome = "error"
	}
	c.metrics.Generation.WithLabelValues(c.surface, outcome).Inc()
	c.metrics.GenerationTime.WithLabelValues(c.surface).Observe(time.Since(start).Seconds())
}

// truncate keeps at most n bytes of s without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
