package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Session is a live event stream to one AI backend for one call.
type Session interface {
	// SendAudio appends PCM16 audio to the backend's input buffer.
	SendAudio(ctx context.Context, pcm []byte) error
	// CreateResponse asks the backend to generate a reply. instructions,
	// when non-empty, override the turn's prompt (used for nudges).
	CreateResponse(ctx context.Context, instructions string) error
	// CancelResponse cancels the in-flight response with the given id.
	CancelResponse(ctx context.Context, responseID string) error
	// Events delivers normalized events until the session closes.
	Events() <-chan Event
	Close() error
}

// Config selects and parameterizes a backend session.
type Config struct {
	Backend      string // openai | gemini | mock
	APIKey       string
	Model        string
	Voice        string
	SystemPrompt string
	URL          string // optional endpoint override
	EventBuffer  int
	// OnDropAudio is invoked when a backend audio delta is discarded
	// because the consumer is behind. May be nil.
	OnDropAudio func()
}

// SampleRateFor returns the PCM rate each backend speaks.
func SampleRateFor(backend string) int {
	if strings.EqualFold(backend, "gemini") {
		return 16000
	}
	return 24000
}

var ErrSessionClosed = errors.New("provider session closed")

// dialect captures what differs between backends: how to dial, what to
// send, and how to read. The Client is backend-agnostic.
type dialect interface {
	dial(ctx context.Context, cfg Config) (*websocket.Conn, error)
	appendAudio(pcm []byte) any
	createResponse(instructions string) any
	cancelResponse(responseID string) (any, bool)
	adapter() Adapter
}

// New opens a session to the configured backend.
func New(ctx context.Context, cfg Config) (Session, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "openai":
		return connect(ctx, cfg, &openAIDialect{})
	case "gemini":
		return connect(ctx, cfg, &geminiDialect{})
	case "mock":
		return NewMockSession(), nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
}

// Client runs one websocket session against a backend dialect.
type Client struct {
	conn    *websocket.Conn
	d       dialect
	events  chan Event
	done    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
	onDrop  func()
}

func connect(ctx context.Context, cfg Config, d dialect) (*Client, error) {
	conn, err := d.dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = 256
	}
	c := &Client{
		conn:   conn,
		d:      d,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		onDrop: cfg.OnDropAudio,
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.events)
	adapter := c.d.adapter()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.deliver(Event{Type: EventError, Code: "backend_read_failed", Detail: err.Error()})
			return
		}
		ev, ok := adapter.Normalize(raw)
		if !ok {
			continue
		}
		c.deliver(ev)
	}
}

// deliver pushes an event without ever blocking telephony delivery
// indefinitely. Audio deltas are droppable: a slow consumer loses sound
// quality, not protocol state. Control events wait for space.
func (c *Client) deliver(ev Event) {
	if ev.Type == EventAudioDelta {
		select {
		case c.events <- ev:
		case <-c.done:
		default:
			if c.onDrop != nil {
				c.onDrop()
			}
		}
		return
	}
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) SendAudio(ctx context.Context, pcm []byte) error {
	return c.writeJSON(ctx, c.d.appendAudio(pcm))
}

func (c *Client) CreateResponse(ctx context.Context, instructions string) error {
	return c.writeJSON(ctx, c.d.createResponse(instructions))
}

func (c *Client) CancelResponse(ctx context.Context, responseID string) error {
	msg, ok := c.d.cancelResponse(responseID)
	if !ok {
		return nil
	}
	return c.writeJSON(ctx, msg)
}

func (c *Client) writeJSON(ctx context.Context, msg any) error {
	select {
	case <-c.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// openAIDialect speaks the OpenAI Realtime wire protocol.
type openAIDialect struct{}

func (d *openAIDialect) adapter() Adapter { return NewOpenAIAdapter() }

func (d *openAIDialect) dial(ctx context.Context, cfg Config) (*websocket.Conn, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = "wss://api.openai.com/v1/realtime?model=" + cfg.Model
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial openai realtime: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial openai realtime: %w", err)
	}

	setup := map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":          []string{"audio", "text"},
			"voice":               cfg.Voice,
			"instructions":        cfg.SystemPrompt,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
			"turn_detection": map[string]any{
				"type": "server_vad",
			},
		},
	}
	if err := conn.WriteJSON(setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("openai session.update: %w", err)
	}
	return conn, nil
}

func (d *openAIDialect) appendAudio(pcm []byte) any {
	return map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	}
}

func (d *openAIDialect) createResponse(instructions string) any {
	msg := map[string]any{"type": "response.create"}
	if instructions != "" {
		msg["response"] = map[string]any{"instructions": instructions}
	}
	return msg
}

func (d *openAIDialect) cancelResponse(responseID string) (any, bool) {
	return map[string]any{
		"type":        "response.cancel",
		"response_id": responseID,
	}, true
}

// geminiDialect speaks the Gemini Live (BidiGenerateContent) wire protocol.
type geminiDialect struct {
	a *GeminiAdapter
}

func (d *geminiDialect) adapter() Adapter {
	if d.a == nil {
		d.a = NewGeminiAdapter()
	}
	return d.a
}

func (d *geminiDialect) dial(ctx context.Context, cfg Config) (*websocket.Conn, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=" + cfg.APIKey
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial gemini live: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial gemini live: %w", err)
	}

	setup := map[string]any{
		"setup": map[string]any{
			"model": "models/" + cfg.Model,
			"generationConfig": map[string]any{
				"responseModalities": []string{"AUDIO"},
				"speechConfig": map[string]any{
					"voiceConfig": map[string]any{
						"prebuiltVoiceConfig": map[string]any{
							"voiceName": cfg.Voice,
						},
					},
				},
			},
			"systemInstruction": map[string]any{
				"parts": []map[string]any{{"text": cfg.SystemPrompt}},
			},
			"inputAudioTranscription":  map[string]any{},
			"outputAudioTranscription": map[string]any{},
		},
	}
	if err := conn.WriteJSON(setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gemini setup: %w", err)
	}
	return conn, nil
}

func (d *geminiDialect) appendAudio(pcm []byte) any {
	return map[string]any{
		"realtimeInput": map[string]any{
			"audio": map[string]any{
				"mimeType": "audio/pcm;rate=16000",
				"data":     base64.StdEncoding.EncodeToString(pcm),
			},
		},
	}
}

func (d *geminiDialect) createResponse(instructions string) any {
	content := map[string]any{"turnComplete": true}
	if instructions != "" {
		content["turns"] = []map[string]any{{
			"role":  "user",
			"parts": []map[string]any{{"text": instructions}},
		}}
	}
	return map[string]any{"clientContent": content}
}

func (d *geminiDialect) cancelResponse(string) (any, bool) {
	// Gemini Live interrupts generation itself when new speech arrives and
	// reports it via serverContent.interrupted; there is no explicit cancel.
	return nil, false
}
