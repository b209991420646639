package provider

import (
	"encoding/base64"
	"encoding/json"
)

// OpenAIAdapter normalizes OpenAI Realtime server events.
type OpenAIAdapter struct{}

func NewOpenAIAdapter() *OpenAIAdapter { return &OpenAIAdapter{} }

func (a *OpenAIAdapter) Backend() string { return "openai" }

type openAIServerEvent struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Response   struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response"`
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *OpenAIAdapter) Normalize(raw []byte) (Event, bool) {
	var msg openAIServerEvent
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, false
	}

	switch msg.Type {
	case "input_audio_buffer.speech_started":
		return Event{Type: EventSpeechStarted}, true
	case "conversation.item.input_audio_transcription.delta":
		return Event{Type: EventTranscriptDelta, Role: RoleUser, Text: msg.Delta}, true
	case "conversation.item.input_audio_transcription.completed":
		return Event{Type: EventTranscriptDone, Role: RoleUser, Text: msg.Transcript}, true
	case "response.audio_transcript.delta":
		return Event{Type: EventTranscriptDelta, Role: RoleAssistant, ResponseID: msg.ResponseID, Text: msg.Delta}, true
	case "response.audio_transcript.done":
		return Event{Type: EventTranscriptDone, Role: RoleAssistant, ResponseID: msg.ResponseID, Text: msg.Transcript}, true
	case "response.audio.delta":
		audio, err := base64.StdEncoding.DecodeString(msg.Delta)
		if err != nil {
			return Event{Type: EventError, Code: "bad_audio_delta", Detail: err.Error()}, true
		}
		return Event{Type: EventAudioDelta, ResponseID: msg.ResponseID, Audio: audio}, true
	case "response.audio.done":
		return Event{Type: EventAudioDone, ResponseID: msg.ResponseID}, true
	case "response.done":
		if msg.Response.Status == "cancelled" {
			return Event{Type: EventResponseCancelled, ResponseID: msg.Response.ID}, true
		}
		return Event{Type: EventResponseDone, ResponseID: msg.Response.ID}, true
	case "error":
		code := msg.Error.Code
		if code == "" {
			code = msg.Error.Type
		}
		return Event{Type: EventError, Code: code, Detail: msg.Error.Message}, true
	default:
		// session.*, rate_limits.*, conversation.item.created and friends
		// carry nothing the bridge acts on.
		return Event{}, false
	}
}
