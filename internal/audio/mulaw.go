package audio

// G.711 mu-law codec. The telephony wire carries 8-bit companded samples;
// the AI backends want linear PCM16.

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// DecodeMulawSample expands one companded byte to a linear sample.
func DecodeMulawSample(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int(mant) << 3) + mulawBias
	value <<= uint(exp)
	value -= mulawBias
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// EncodeMulawSample compands one linear sample.
func EncodeMulawSample(sample int16) byte {
	s := int(sample)
	sign := byte(0)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias
	exp := byte(7)
	for mask := 0x4000; s&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := byte((s >> (uint(exp) + 3)) & 0x0F)
	return ^(sign | (exp << 4) | mant)
}

// DecodeMulaw expands a companded buffer to linear samples.
func DecodeMulaw(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = DecodeMulawSample(b)
	}
	return out
}

// EncodeMulaw compands linear samples.
func EncodeMulaw(pcm []int16) []byte {
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = EncodeMulawSample(s)
	}
	return out
}

// PCM16ToBytes serializes samples as little-endian bytes.
func PCM16ToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// BytesToPCM16 parses little-endian bytes as samples. len(b) must be even.
func BytesToPCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}
