package provider

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
)

// GeminiAdapter normalizes Gemini Live server messages. The Live API does
// not name its responses, so the adapter mints a response id when a model
// turn begins and retires it when the turn completes or is interrupted,
// giving downstream components the same id semantics as OpenAI.
type GeminiAdapter struct {
	responseID string
}

func NewGeminiAdapter() *GeminiAdapter { return &GeminiAdapter{} }

func (a *GeminiAdapter) Backend() string { return "gemini" }

type geminiServerMessage struct {
	SetupComplete *struct{} `json:"setupComplete"`
	ServerContent *struct {
		Interrupted        bool `json:"interrupted"`
		TurnComplete       bool `json:"turnComplete"`
		GenerationComplete bool `json:"generationComplete"`
		ModelTurn          *struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"modelTurn"`
		InputTranscription  *geminiTranscription `json:"inputTranscription"`
		OutputTranscription *geminiTranscription `json:"outputTranscription"`
	} `json:"serverContent"`
	GoAway *struct {
		TimeLeft string `json:"timeLeft"`
	} `json:"goAway"`
}

type geminiTranscription struct {
	Text     string `json:"text"`
	Finished bool   `json:"finished"`
}

func (a *GeminiAdapter) Normalize(raw []byte) (Event, bool) {
	var msg geminiServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, false
	}

	if msg.GoAway != nil {
		return Event{Type: EventError, Code: "go_away", Detail: msg.GoAway.TimeLeft}, true
	}
	sc := msg.ServerContent
	if sc == nil {
		// setupComplete, usage metadata, tool traffic.
		return Event{}, false
	}

	switch {
	case sc.Interrupted:
		id := a.responseID
		a.responseID = ""
		return Event{Type: EventResponseCancelled, ResponseID: id}, true
	case sc.TurnComplete:
		id := a.responseID
		a.responseID = ""
		return Event{Type: EventResponseDone, ResponseID: id}, true
	case sc.GenerationComplete:
		return Event{Type: EventAudioDone, ResponseID: a.responseID}, true
	case sc.InputTranscription != nil:
		t := EventTranscriptDelta
		if sc.InputTranscription.Finished {
			t = EventTranscriptDone
		}
		return Event{Type: t, Role: RoleUser, Text: sc.InputTranscription.Text}, true
	case sc.OutputTranscription != nil:
		t := EventTranscriptDelta
		if sc.OutputTranscription.Finished {
			t = EventTranscriptDone
		}
		return Event{Type: t, Role: RoleAssistant, ResponseID: a.ensureResponseID(), Text: sc.OutputTranscription.Text}, true
	case sc.ModelTurn != nil:
		var audio []byte
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			chunk, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return Event{Type: EventError, Code: "bad_audio_delta", Detail: err.Error()}, true
			}
			audio = append(audio, chunk...)
		}
		if len(audio) == 0 {
			return Event{}, false
		}
		return Event{Type: EventAudioDelta, ResponseID: a.ensureResponseID(), Audio: audio}, true
	default:
		return Event{}, false
	}
}

func (a *GeminiAdapter) ensureResponseID() string {
	if a.responseID == "" {
		a.responseID = "gemini-" + uuid.NewString()
	}
	return a.responseID
}
