package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/heyalice-ai/alicepi/internal/engine/chatbackend"
	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
)

const defaultSystemPrompt = `You are Alice, a helpful AI assistant for the AlicePi smart speaker. Keep your responses concise and friendly.

You are speaking to a child through an orchestrator. Identify yourself as Alice in your replies, and use a warm,
whimsical tone appropriate for young listeners.

Preceed any text that should be spoken aloud with [VOICE OUTPUT] and end it with [/VOICE OUTPUT].`

// SplitConfig configures the two independent backends a SplitEngine talks
// to: an OpenAI-chat-completions-shaped LLM, and a vibevoice-style
// websocket TTS endpoint addressed entirely by query parameters.
type SplitConfig struct {
	LLMAPIURL       string
	LLMModel        string
	SystemPrompt    string
	LLMTimeout      time.Duration
	TTSWSURL        string
	TTSCfgScale     *float32
	TTSSteps        *int
	TTSVoice        string
	TTSConnectTimeout time.Duration
	TTSSampleRate   uint32
	TTSChannels     uint16
}

func SplitConfigFromEnv() SplitConfig {
	cfg := SplitConfig{
		LLMAPIURL:         firstNonEmpty(envString("LLM_API_URL"), "http://ollama:11434/v1/chat/completions"),
		LLMModel:          firstNonEmpty(envString("LLM_MODEL_NAME"), "gemma3:270m"),
		SystemPrompt:      firstNonEmpty(envString("SYSTEM_PROMPT"), defaultSystemPrompt),
		LLMTimeout:        envSeconds("LLM_TIMEOUT_SECONDS", 15),
		TTSWSURL:          firstNonEmpty(envString("VIBEVOICE_WS_URL"), "ws://vibevoice:8000/stream"),
		TTSVoice:          envString("VIBEVOICE_VOICE"),
		TTSConnectTimeout: envSeconds("VIBEVOICE_CONNECT_TIMEOUT", 10),
		TTSSampleRate:     uint32(envIntDefault("VIBEVOICE_SAMPLE_RATE", 22050)),
		TTSChannels:       uint16(envIntDefault("VIBEVOICE_CHANNELS", 1)),
	}
	if v := envString("VIBEVOICE_CFG_SCALE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			f32 := float32(f)
			cfg.TTSCfgScale = &f32
		}
	}
	if v := envString("VIBEVOICE_INFERENCE_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TTSSteps = &n
		}
	}
	return cfg
}

// SplitEngine is the local-hardware Engine: a chat-completions LLM call
// followed by a websocket TTS call, restructured from the teacher's
// LokutorTTS JSON-message websocket protocol into query-parameter framing.
type SplitEngine struct {
	cfg    SplitConfig
	log    logging.Logger
	client *http.Client

	// chat, when set (via LLM_BACKEND), replaces callLLM with a
	// provider-specific client instead of the generic chat-completions call.
	chat chatbackend.Backend
}

func NewSplitEngine(cfg SplitConfig, log logging.Logger) *SplitEngine {
	return &SplitEngine{cfg: cfg, log: log, client: &http.Client{Timeout: cfg.LLMTimeout}}
}

// WithChatBackend swaps the generic chat-completions HTTP call for a named
// provider client (anthropic/google/groq/openai), selected via LLM_BACKEND.
func (e *SplitEngine) WithChatBackend(backend chatbackend.Backend) *SplitEngine {
	e.chat = backend
	return e
}

func (e *SplitEngine) Process(ctx context.Context, req Request) (protocol.EngineResponse, error) {
	var responseText string
	var err error
	if e.chat != nil {
		responseText, err = e.callChatBackend(ctx, req.History)
	} else {
		responseText, err = e.callLLM(ctx, req.History)
	}
	if err != nil {
		return protocol.EngineResponse{}, err
	}

	voiceText := extractVoiceOutput(responseText)
	if voiceText == "" {
		voiceText = strings.TrimSpace(responseText)
	}

	audio, err := e.synthesize(ctx, voiceText)
	if err != nil {
		return protocol.EngineResponse{}, err
	}

	text := responseText
	return protocol.EngineResponse{
		AssistantText: &text,
		Audio:         protocol.EngineAudio{Full: &audio},
	}, nil
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmRequest struct {
	Model    string       `json:"model"`
	Messages []llmMessage `json:"messages"`
	Stream   bool         `json:"stream"`
}

type llmChoice struct {
	Message struct {
		Content *string `json:"content"`
	} `json:"message"`
}

type llmResponse struct {
	Choices []llmChoice `json:"choices"`
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

func (r llmResponse) content() (string, bool) {
	for _, c := range r.Choices {
		if c.Message.Content != nil {
			return *c.Message.Content, true
		}
	}
	if r.Message != nil && r.Message.Content != nil {
		return *r.Message.Content, true
	}
	return "", false
}

func (e *SplitEngine) callLLM(ctx context.Context, history []protocol.ChatMessage) (string, error) {
	messages := make([]llmMessage, 0, len(history)+1)
	if strings.TrimSpace(e.cfg.SystemPrompt) != "" {
		messages = append(messages, llmMessage{Role: "system", Content: e.cfg.SystemPrompt})
	}
	for _, m := range history {
		messages = append(messages, llmMessage{Role: m.Role, Content: m.Content})
	}

	payload := llmRequest{Model: e.cfg.LLMModel, Messages: messages, Stream: false}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", wrapf(ErrLLMRequest, "encode request: %v", err)
	}

	resp, err := sendWithRetry(ctx, e.client, e.log, func() (*http.Request, []byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.LLMAPIURL, bytes.NewReader(body))
		if err != nil {
			return nil, nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, body, nil
	})
	if err != nil {
		return "", wrapf(ErrLLMRequest, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", wrapf(ErrLLMRequest, "status %d", resp.StatusCode)
	}

	var parsed llmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", wrapf(ErrLLMRequest, "decode response: %v", err)
	}

	content, ok := parsed.content()
	if !ok {
		return "", wrapf(ErrInvalidResponse, "missing llm response content")
	}
	return content, nil
}

func (e *SplitEngine) callChatBackend(ctx context.Context, history []protocol.ChatMessage) (string, error) {
	messages := make([]protocol.ChatMessage, 0, len(history)+1)
	if strings.TrimSpace(e.cfg.SystemPrompt) != "" {
		messages = append(messages, protocol.ChatMessage{Role: "system", Content: e.cfg.SystemPrompt})
	}
	messages = append(messages, history...)

	content, err := e.chat.Complete(ctx, messages)
	if err != nil {
		return "", wrapf(ErrLLMRequest, "%s: %v", e.chat.Name(), err)
	}
	return content, nil
}

var voiceOutputRe = regexp.MustCompile(`(?is)\[VOICE OUTPUT\](.*?)\[/VOICE OUTPUT\]`)

// extractVoiceOutput joins every [VOICE OUTPUT]...[/VOICE OUTPUT] segment
// found in text, or returns "" if none are present.
func extractVoiceOutput(text string) string {
	matches := voiceOutputRe.FindAllStringSubmatch(text, -1)
	var segments []string
	for _, m := range matches {
		seg := strings.TrimSpace(m[1])
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, " ")
}

func (e *SplitEngine) synthesize(ctx context.Context, text string) (protocol.AudioOutput, error) {
	if strings.TrimSpace(text) == "" {
		return protocol.AudioOutput{}, wrapf(ErrTTSRequest, "empty voice output")
	}

	wsURL, err := e.buildTTSURL(text)
	if err != nil {
		return protocol.AudioOutput{}, wrapf(ErrTTSRequest, "%v", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, e.cfg.TTSConnectTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(connectCtx, wsURL, nil)
	if err != nil {
		return protocol.AudioOutput{}, wrapf(ErrTTSRequest, "connect: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var audio []byte
	for {
		msgType, payload, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				// A close frame, whatever its status code, ends the
				// stream: the server is done sending PCM.
				if len(audio) == 0 {
					return protocol.AudioOutput{}, wrapf(ErrTTSRequest, "no audio received")
				}
				return protocol.PcmOutput(audio, e.cfg.TTSSampleRate, e.cfg.TTSChannels), nil
			}
			return protocol.AudioOutput{}, wrapf(ErrTTSRequest, "read: %v", err)
		}
		switch msgType {
		case websocket.MessageBinary:
			audio = append(audio, payload...)
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				if len(audio) == 0 {
					return protocol.AudioOutput{}, wrapf(ErrTTSRequest, "no audio received")
				}
				return protocol.PcmOutput(audio, e.cfg.TTSSampleRate, e.cfg.TTSChannels), nil
			}
			if strings.HasPrefix(msg, "ERR:") {
				return protocol.AudioOutput{}, wrapf(ErrTTSRequest, "%s", msg)
			}
		}
	}
}

func (e *SplitEngine) buildTTSURL(text string) (string, error) {
	u, err := url.Parse(e.cfg.TTSWSURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("text", text)
	if e.cfg.TTSCfgScale != nil {
		q.Set("cfg", fmt.Sprintf("%v", *e.cfg.TTSCfgScale))
	}
	if e.cfg.TTSSteps != nil {
		q.Set("steps", strconv.Itoa(*e.cfg.TTSSteps))
	}
	if e.cfg.TTSVoice != "" {
		q.Set("voice", e.cfg.TTSVoice)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
