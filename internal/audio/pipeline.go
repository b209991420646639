package audio

import (
	"errors"
	"fmt"
)

// ErrOddPCMLength reports a PCM chunk whose length is not a whole number of
// 16-bit samples. This is a programming error in the caller, not wire noise.
var ErrOddPCMLength = errors.New("pcm chunk length is not sample-aligned")

// AlignmentBuffer accumulates arbitrary-length byte chunks and releases them
// as exact fixed-size frames. Resampling rarely yields whole frame multiples,
// so the remainder (0..frameBytes-1 bytes) is carried into the next push.
type AlignmentBuffer struct {
	frameBytes int
	buf        []byte
}

func NewAlignmentBuffer(frameBytes int) *AlignmentBuffer {
	if frameBytes <= 0 {
		frameBytes = MulawFrameBytes
	}
	return &AlignmentBuffer{frameBytes: frameBytes}
}

// Push appends chunk and returns every whole frame now available.
// Each returned frame is an independent copy of exactly frameBytes bytes.
func (a *AlignmentBuffer) Push(chunk []byte) [][]byte {
	a.buf = append(a.buf, chunk...)
	n := len(a.buf) / a.frameBytes
	if n == 0 {
		return nil
	}
	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		frame := make([]byte, a.frameBytes)
		copy(frame, a.buf[i*a.frameBytes:(i+1)*a.frameBytes])
		frames = append(frames, frame)
	}
	rest := len(a.buf) - n*a.frameBytes
	copy(a.buf, a.buf[n*a.frameBytes:])
	a.buf = a.buf[:rest]
	return frames
}

// Buffered returns the number of bytes retained for the next push.
func (a *AlignmentBuffer) Buffered() int { return len(a.buf) }

// Reset discards any retained remainder.
func (a *AlignmentBuffer) Reset() { a.buf = a.buf[:0] }

// InboundPipeline converts telephony mu-law chunks into fixed 20ms PCM16
// frames at the AI backend's rate.
type InboundPipeline struct {
	targetRate int
	align      *AlignmentBuffer
	seq        uint64
}

func NewInboundPipeline(targetRate int) *InboundPipeline {
	return &InboundPipeline{
		targetRate: targetRate,
		align:      NewAlignmentBuffer(PCMFrameBytes(targetRate)),
	}
}

// Ingest decodes and resamples one mu-law chunk, returning every whole frame
// now available. May return zero frames. Empty chunks are a no-op.
func (p *InboundPipeline) Ingest(mulaw []byte) []Frame {
	if len(mulaw) == 0 {
		return nil
	}
	pcm := Resample(DecodeMulaw(mulaw), TelephonyRate, p.targetRate)
	return p.frames(p.align.Push(PCM16ToBytes(pcm)), FormatPCM16)
}

// Buffered returns bytes retained awaiting frame completion.
func (p *InboundPipeline) Buffered() int { return p.align.Buffered() }

func (p *InboundPipeline) frames(raw [][]byte, format Format) []Frame {
	if len(raw) == 0 {
		return nil
	}
	frames := make([]Frame, 0, len(raw))
	for _, data := range raw {
		frames = append(frames, Frame{
			Data:      data,
			Direction: DirectionInbound,
			Format:    format,
			Seq:       p.seq,
		})
		p.seq++
	}
	return frames
}

// OutboundPipeline converts backend PCM16 chunks into fixed 160-byte mu-law
// telephony frames.
type OutboundPipeline struct {
	sourceRate int
	align      *AlignmentBuffer
	seq        uint64
}

func NewOutboundPipeline(sourceRate int) *OutboundPipeline {
	return &OutboundPipeline{
		sourceRate: sourceRate,
		align:      NewAlignmentBuffer(MulawFrameBytes),
	}
}

// Emit compands and downsamples one PCM16LE chunk, returning every whole
// telephony frame now available. A sample-misaligned chunk clears the buffer
// and surfaces an error rather than corrupting subsequent frames.
func (p *OutboundPipeline) Emit(pcm []byte) ([]Frame, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	if len(pcm)%2 != 0 {
		p.align.Reset()
		return nil, fmt.Errorf("emit %d bytes: %w", len(pcm), ErrOddPCMLength)
	}
	samples := Resample(BytesToPCM16(pcm), p.sourceRate, TelephonyRate)
	raw := p.align.Push(EncodeMulaw(samples))
	if len(raw) == 0 {
		return nil, nil
	}
	frames := make([]Frame, 0, len(raw))
	for _, data := range raw {
		frames = append(frames, Frame{
			Data:      data,
			Direction: DirectionOutbound,
			Format:    FormatMulaw,
			Seq:       p.seq,
		})
		p.seq++
	}
	return frames, nil
}

// Buffered returns bytes retained awaiting frame completion.
func (p *OutboundPipeline) Buffered() int { return p.align.Buffered() }

// Flush discards any partial frame, e.g. after a cancelled response.
func (p *OutboundPipeline) Flush() { p.align.Reset() }
