package telephony

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// EventName identifies media-stream payload variants.
type EventName string

const (
	EventStart EventName = "start"
	EventMedia EventName = "media"
	EventStop  EventName = "stop"
	EventMark  EventName = "mark"
	EventClear EventName = "clear"
)

var ErrUnsupportedEvent = errors.New("unsupported media stream event")

type Envelope struct {
	Event EventName `json:"event"`
}

// StartMessage opens a media stream and binds the call configuration the
// business side resolved before dialing.
type StartMessage struct {
	Event        EventName `json:"event"`
	CallID       string    `json:"call_id"`
	TenantID     string    `json:"tenant_id"`
	Backend      string    `json:"backend,omitempty"`
	VoiceID      string    `json:"voice_id,omitempty"`
	Locale       string    `json:"locale,omitempty"`
	GreetingText string    `json:"greeting_text,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
}

// MediaMessage carries one base64-encoded 160-byte mu-law frame.
type MediaMessage struct {
	Event   EventName `json:"event"`
	CallID  string    `json:"call_id"`
	Seq     int       `json:"seq"`
	Payload string    `json:"payload"`
}

// DecodePayload returns the raw companded bytes of a media message.
func (m MediaMessage) DecodePayload() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return raw, nil
}

// EncodeMediaMessage wraps an outbound frame for the wire.
func EncodeMediaMessage(callID string, seq int, frame []byte) MediaMessage {
	return MediaMessage{
		Event:   EventMedia,
		CallID:  callID,
		Seq:     seq,
		Payload: base64.StdEncoding.EncodeToString(frame),
	}
}

// StopMessage closes a media stream.
type StopMessage struct {
	Event  EventName `json:"event"`
	CallID string    `json:"call_id"`
	Reason string    `json:"reason,omitempty"`
}

// MarkMessage is echoed back by the telephony side once all frames queued
// before it have been played.
type MarkMessage struct {
	Event  EventName `json:"event"`
	CallID string    `json:"call_id"`
	Name   string    `json:"name"`
}

// ClearMessage tells the telephony side to drop its buffered outbound
// audio, used on barge-in.
type ClearMessage struct {
	Event  EventName `json:"event"`
	CallID string    `json:"call_id"`
}

// ParseInbound decodes and validates one raw media-stream message.
func ParseInbound(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Event {
	case EventStart:
		var msg StartMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.CallID == "" || msg.TenantID == "" {
			return nil, errors.New("invalid start: call_id and tenant_id are required")
		}
		return msg, nil
	case EventMedia:
		var msg MediaMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.CallID == "" || msg.Payload == "" {
			return nil, errors.New("invalid media: call_id and payload are required")
		}
		return msg, nil
	case EventStop:
		var msg StopMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.CallID == "" {
			return nil, errors.New("invalid stop: call_id is required")
		}
		return msg, nil
	case EventMark:
		var msg MarkMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.CallID == "" || msg.Name == "" {
			return nil, errors.New("invalid mark: call_id and name are required")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedEvent
	}
}
