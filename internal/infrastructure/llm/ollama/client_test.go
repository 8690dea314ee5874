package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
)

func TestGenerateParsesUsage(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  {\"ok\":true}  ","prompt_eval_count":120,"eval_count":40}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3")
	reply, err := client.Generate(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply.Text != `{"ok":true}` {
		t.Fatalf("unexpected text: %q", reply.Text)
	}
	if reply.Usage.PromptTokens != 120 || reply.Usage.CompletionTokens != 40 || reply.Usage.TotalTokens != 160 {
		t.Fatalf("unexpected usage: %+v", reply.Usage)
	}

	if captured["model"] != "llama3" || captured["system"] != "system text" || captured["prompt"] != "user text" {
		t.Fatalf("unexpected request payload: %+v", captured)
	}
	if captured["stream"] != false {
		t.Fatalf("expected stream=false, got %v", captured["stream"])
	}
}

func TestGenerateWrapsRetryableStatusAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "llama3")
	_, err := client.Generate(context.Background(), "", "prompt")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("502 should be temporary, got %v", err)
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestGeneratePermanentStatusStaysPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model name", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, "llama3")
	_, err := client.Generate(context.Background(), "", "prompt")
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("400 must not be temporary, got %v", err)
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected HTTPStatusError with 400, got %v", err)
	}
}

func TestGenerateContextCancellationPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New(server.URL, "llama3")
	_, err := client.Generate(ctx, "", "prompt")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("cancellation must not be marked temporary, got %v", err)
	}
}

func TestRetryableStatusTable(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !isRetryableHTTPStatus(code) {
			t.Fatalf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 404, 422} {
		if isRetryableHTTPStatus(code) {
			t.Fatalf("expected %d to be permanent", code)
		}
	}
}
