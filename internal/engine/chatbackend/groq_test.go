package chatbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/heyalice-ai/alicepi/internal/protocol"
)

func TestGroqComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "hello from groq"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	g := &Groq{apiKey: "test-key", url: server.URL, model: "llama3-70b"}

	resp, err := g.Complete(context.Background(), []protocol.ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hello from groq" {
		t.Errorf("expected 'hello from groq', got %q", resp)
	}
	if g.Name() != "groq-llm" {
		t.Errorf("expected groq-llm, got %s", g.Name())
	}
}
