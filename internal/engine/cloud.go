package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
)

// CloudConfig configures the single-endpoint Engine that posts the user's
// text and gets the spoken reply back as MP3 audio from one request; the
// response carries no assistant text.
type CloudConfig struct {
	APIURL      string
	VoiceID     string
	TenantID    string
	Timeout     time.Duration
	StreamAudio bool
}

func CloudConfigFromEnv() CloudConfig {
	return CloudConfig{
		APIURL:      firstNonEmpty(envString("CLOUD_API_URL"), "http://localhost:8080/api/voice/chat"),
		VoiceID:     firstNonEmpty(envString("CLOUD_VOICE_ID"), "af_alloy"),
		TenantID:    envString("CLOUD_TENANT_ID"),
		Timeout:     envSeconds("CLOUD_TIMEOUT_SECONDS", 30),
		StreamAudio: true,
	}
}

type CloudEngine struct {
	cfg    CloudConfig
	log    logging.Logger
	client *http.Client
}

func NewCloudEngine(cfg CloudConfig, log logging.Logger) *CloudEngine {
	return &CloudEngine{cfg: cfg, log: log, client: &http.Client{Timeout: cfg.Timeout}}
}

type cloudRequest struct {
	Query          string `json:"query"`
	VoiceID        string `json:"voiceId"`
	ConversationID string `json:"conversationId"`
	TenantID       string `json:"tenantId,omitempty"`
}

func (e *CloudEngine) Process(ctx context.Context, req Request) (protocol.EngineResponse, error) {
	payload := cloudRequest{
		Query:          req.Text,
		VoiceID:        e.cfg.VoiceID,
		ConversationID: req.SessionID,
		TenantID:       e.cfg.TenantID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return protocol.EngineResponse{}, wrapf(ErrCloudRequest, "encode request: %v", err)
	}

	resp, err := sendWithRetry(ctx, e.client, e.log, func() (*http.Request, []byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.APIURL, bytes.NewReader(body))
		if err != nil {
			return nil, nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "audio/mpeg")
		return httpReq, body, nil
	})
	if err != nil {
		return protocol.EngineResponse{}, wrapf(ErrCloudRequest, "%v", err)
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return protocol.EngineResponse{}, wrapf(ErrCloudRequest, "status %d", resp.StatusCode)
	}

	if e.cfg.StreamAudio {
		return e.streamResponse(ctx, resp), nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return protocol.EngineResponse{}, wrapf(ErrCloudRequest, "read body: %v", err)
	}
	audio := protocol.Mp3Output(data)
	return protocol.EngineResponse{Audio: protocol.EngineAudio{Full: &audio}}, nil
}

// streamResponse turns resp's body into a lazily-read chunk channel, so the
// caller can start forwarding audio to voice-output before the full reply
// has arrived.
func (e *CloudEngine) streamResponse(ctx context.Context, resp *http.Response) protocol.EngineResponse {
	chunks := make(chan protocol.StreamChunk, 4)

	go func() {
		defer resp.Body.Close()
		defer close(chunks)

		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case chunks <- protocol.StreamChunk{Data: chunk}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					select {
					case chunks <- protocol.StreamChunk{Err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()

	stream := protocol.AudioStream{Format: protocol.AudioStreamFmt{Type: "mp3"}, Chunks: chunks}
	return protocol.EngineResponse{Audio: protocol.EngineAudio{Stream: &stream}}
}
