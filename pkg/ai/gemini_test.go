package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiGeneratorRequestShape(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("api key leaked into query: %q", r.URL.RawQuery)
		}
		if key := r.Header.Get("x-goog-api-key"); key != "g-key" {
			t.Errorf("api key header = %q", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Stay "},{"text":"curious."}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	gen, err := NewGeminiGenerator("g-key", srv.URL+"/v1beta/", "models/gemini-test")
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	text, err := gen.GenerateText(context.Background(), "be brief", "a quote please")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Stay curious." {
		t.Fatalf("text = %q", text)
	}
	if got.System == nil || got.System.Parts[0].Text != "be brief" {
		t.Fatalf("system instruction = %+v", got.System)
	}
	if len(got.Contents) != 1 || got.Contents[0].Role != "user" || got.Contents[0].Parts[0].Text != "a quote please" {
		t.Fatalf("contents = %+v", got.Contents)
	}
}

func TestGeminiGeneratorEmptyAnswers(t *testing.T) {
	cases := map[string]string{
		"blocked prompt":   `{"promptFeedback":{"blockReason":"SAFETY"}}`,
		"no candidates":    `{"candidates":[]}`,
		"safety finish":    `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`,
		"whitespace reply": `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`,
	}
	for name, body := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		gen, err := NewGeminiGenerator("k", srv.URL, "")
		if err != nil {
			t.Fatalf("%s: new generator: %v", name, err)
		}
		if _, err := gen.GenerateText(context.Background(), "", "x"); !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("%s: err = %v, want ErrEmptyResponse", name, err)
		}
		srv.Close()
	}
}

func TestGeminiGeneratorStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer srv.Close()

	gen, err := NewGeminiGenerator("k", srv.URL, "")
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	_, err = gen.GenerateText(context.Background(), "", "x")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests || se.Message != "quota" {
		t.Fatalf("err = %#v", err)
	}
	if _, err := NewGeminiGenerator(" ", "", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("missing key: err = %v", err)
	}
}
