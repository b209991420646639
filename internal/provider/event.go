package provider

// EventType enumerates the internal event vocabulary. Every component past
// the adapter operates only on these; backend-specific field names never
// leak downstream.
type EventType string

const (
	EventSpeechStarted     EventType = "speech_started"
	EventTranscriptDelta   EventType = "transcript_delta"
	EventTranscriptDone    EventType = "transcript_done"
	EventAudioDelta        EventType = "audio_delta"
	EventAudioDone         EventType = "audio_done"
	EventResponseDone      EventType = "response_done"
	EventResponseCancelled EventType = "response_cancelled"
	EventError             EventType = "error"
)

// Role distinguishes whose transcript a text event carries.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Event is the tagged variant normalized from a raw backend message.
type Event struct {
	Type       EventType
	ResponseID string
	Role       Role
	Text       string
	Audio      []byte // decoded PCM16, audio deltas only
	Code       string // error events only
	Detail     string
}

// Adapter normalizes one raw backend message into at most one internal
// event. ok=false means the message is irrelevant and must be dropped.
type Adapter interface {
	Normalize(raw []byte) (Event, bool)
	Backend() string
}
