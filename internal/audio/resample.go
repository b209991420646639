package audio

import "math"

// Resample converts pcm between sample rates with linear interpolation.
// Good enough for narrowband speech; the backends apply their own filtering.
func Resample(in []int16, inRate, outRate int) []int16 {
	if inRate == outRate || len(in) == 0 {
		return append([]int16(nil), in...)
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(in)) * ratio))
	if outLen <= 0 {
		return []int16{}
	}
	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		i0 := int(math.Floor(srcPos))
		if i0 >= len(in) {
			i0 = len(in) - 1
		}
		i1 := i0 + 1
		if i1 >= len(in) {
			i1 = len(in) - 1
		}
		f := srcPos - float64(i0)
		v := float64(in[i0])*(1.0-f) + float64(in[i1])*f
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}
