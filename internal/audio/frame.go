package audio

import "time"

// Direction tags which leg of the call a frame belongs to.
type Direction string

const (
	DirectionInbound  Direction = "inbound"  // telephony -> AI
	DirectionOutbound Direction = "outbound" // AI -> telephony
)

// Format identifies the sample encoding of a frame.
type Format string

const (
	FormatMulaw Format = "mulaw8000"
	FormatPCM16 Format = "pcm16"
)

const (
	// TelephonyRate is the narrowband rate on the wire.
	TelephonyRate = 8000
	// FrameDuration is the fixed telephony frame length.
	FrameDuration = 20 * time.Millisecond
	// MulawFrameBytes is one 20ms frame of 8kHz mu-law (one byte per sample).
	MulawFrameBytes = 160
)

// Frame is an immutable fixed-size audio unit. Produced by the codec
// pipelines, consumed once downstream, never mutated.
type Frame struct {
	Data      []byte
	Direction Direction
	Format    Format
	Seq       uint64
}

// PCMFrameBytes returns the byte length of one 20ms PCM16 frame at rate.
func PCMFrameBytes(rate int) int {
	return rate / 50 * 2
}
