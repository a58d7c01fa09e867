package chatbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/heyalice-ai/alicepi/internal/protocol"
)

// Groq is OpenAI-chat-completions-shaped, same as the teacher's other
// providers; cmd/agent/main.go wires a Groq LLM but the teacher never
// shipped the implementation file, only its test — this fills that gap in
// the teacher's own idiom.
type Groq struct {
	apiKey string
	url    string
	model  string
}

func NewGroq(apiKey, model string) *Groq {
	if model == "" {
		model = "llama3-70b-8192"
	}
	return &Groq{apiKey: apiKey, url: "https://api.groq.com/openai/v1/chat/completions", model: model}
}

func (g *Groq) Complete(ctx context.Context, messages []protocol.ChatMessage) (string, error) {
	payload := map[string]interface{}{"model": g.model, "messages": messages}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("groq llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from groq")
	}
	return result.Choices[0].Message.Content, nil
}

func (g *Groq) Name() string { return "groq-llm" }
