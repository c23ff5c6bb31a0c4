package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestOpenAICompatGeneratorSendsContract(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hello  "}}]}`))
	}))
	defer srv.Close()

	client, err := NewChatClient(ChatClientConfig{Surface: "vertex", BaseURL: srv.URL + "/v1/", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	gen := NewOpenAICompatGenerator(client, "", 0, 0)
	text, err := gen.GenerateText(context.Background(), "", "say hi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "hello" {
		t.Fatalf("text = %q, want hello", text)
	}
	if got.Model != DefaultTextModel || got.Temperature != 0.7 || got.MaxTokens != 8192 {
		t.Fatalf("request = %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "say hi" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestChatClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exhausted","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	client, err := NewChatClient(ChatClientConfig{Surface: "vertex", BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = NewOpenAICompatGenerator(client, "m", 0, 0).GenerateText(context.Background(), "", "x")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || statusErr.Message != "quota exhausted" {
		t.Fatalf("status error = %+v", statusErr)
	}
}

func TestChatClientStatusErrorKeepsRunesWhole(t *testing.T) {
	body := "x" + strings.Repeat("服务繁忙", 50)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client, err := NewChatClient(ChatClientConfig{Surface: "vertex", BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = NewOpenAICompatGenerator(client, "m", 0, 0).GenerateText(context.Background(), "", "x")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	msg := statusErr.Message
	if !utf8.ValidString(msg) {
		t.Fatalf("message split a rune: %q", msg)
	}
	if !strings.HasSuffix(msg, "...") || len(msg) > 303 || !strings.HasPrefix(body, strings.TrimSuffix(msg, "...")) {
		t.Fatalf("message = %q", msg)
	}
}

func TestImageGeneratorNormalizesReply(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"QUJDRA=="}}]}`))
	}))
	defer srv.Close()

	client, err := NewChatClient(ChatClientConfig{Surface: "vertex_image", BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	url, err := NewOpenAICompatImageGenerator(client, "", 0, 0).GenerateImage(context.Background(), "draw")
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if url != "data:image/png;base64,QUJDRA==" {
		t.Fatalf("url = %q", url)
	}
	if got.Model != DefaultImageModel || got.Temperature != 0.9 || got.MaxTokens != 4096 {
		t.Fatalf("request = %+v", got)
	}
}

func TestImageGeneratorNoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"I can only describe it."}}]}`))
	}))
	defer srv.Close()

	client, _ := NewChatClient(ChatClientConfig{BaseURL: srv.URL})
	_, err := NewOpenAICompatImageGenerator(client, "", 0, 0).GenerateImage(context.Background(), "draw")
	if !errors.Is(err, ErrNoImageData) {
		t.Fatalf("err = %v, want ErrNoImageData", err)
	}
}

func TestNewChatClientRequiresBaseURL(t *testing.T) {
	if _, err := NewChatClient(ChatClientConfig{BaseURL: "  "}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestTextServiceAcceptsResultsField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req textServiceRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.URL.Path != "/generate" || req.Count != 2 || !strings.Contains(req.Prompt, "opposing") {
			t.Errorf("unexpected request %s %+v", r.URL.Path, req)
		}
		_, _ = w.Write([]byte(`{"results":["one"," ","two","three"]}`))
	}))
	defer srv.Close()

	client, err := NewTextServiceClient(srv.URL, "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	texts, err := client.GenerateTexts(context.Background(), "an opposing view", 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(texts) != 2 || texts[0] != "one" || texts[1] != "two" {
		t.Fatalf("texts = %q", texts)
	}
}

func TestPlaceholderImageFallsBackToMock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewPlaceholderImageClient(srv.URL, "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got := client.ImageURLOrMock(context.Background(), "a lighthouse", "")
	if got != MockImageURL("a lighthouse") {
		t.Fatalf("url = %q", got)
	}
	var nilClient *PlaceholderImageClient
	if nilClient.ImageURLOrMock(context.Background(), "x", "") != MockImageURL("x") {
		t.Fatalf("nil client should use the mock url")
	}
}

func TestMockImageURLIsStable(t *testing.T) {
	// "abc": ((97*31)+98)*31+99 = 96354
	if got := MockImageURL("abc"); got != "https://picsum.photos/seed/354/400/600" {
		t.Fatalf("url = %q", got)
	}
	if MockImageURL("同一句话") != MockImageURL("同一句话") {
		t.Fatalf("mock url should be deterministic")
	}
}
