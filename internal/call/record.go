package call

// recorder accumulates both legs of a call at the telephony rate for the
// post-call recording.
type recorder struct {
	in  []int16
	out []int16
}

func newRecorder() *recorder {
	return &recorder{}
}

func (r *recorder) AddInbound(samples []int16) {
	r.in = append(r.in, samples...)
}

func (r *recorder) AddOutbound(samples []int16) {
	r.out = append(r.out, samples...)
}

// Mix overlays the two legs sample by sample with clipping. Alignment is
// approximate: both legs advance in real time, so index position tracks
// wall clock closely enough for review purposes.
func (r *recorder) Mix() []int16 {
	n := len(r.in)
	if len(r.out) > n {
		n = len(r.out)
	}
	mixed := make([]int16, n)
	for i := range mixed {
		sum := 0
		if i < len(r.in) {
			sum += int(r.in[i])
		}
		if i < len(r.out) {
			sum += int(r.out[i])
		}
		if sum > 32767 {
			sum = 32767
		} else if sum < -32768 {
			sum = -32768
		}
		mixed[i] = int16(sum)
	}
	return mixed
}

func (r *recorder) Empty() bool {
	return len(r.in) == 0 && len(r.out) == 0
}
