package vad

import "math"

// Detector is an RMS-energy voice activity detector over 20ms PCM16 frames.
// It calibrates against the call's own noise floor before reporting speech:
// telephony lines vary wildly in background hiss, and a fixed threshold either
// misses quiet speakers or fires on line noise.
type Detector struct {
	calibrationFrames int
	speechFrames      int
	silenceFrames     int
	minThreshold      float64

	seen          int
	noiseSum      float64
	speechLevel   float64
	silenceLevel  float64
	inSpeech      bool
	speechCount   int
	silenceCount  int
}

// Config tunes the detector. Zero values pick defaults suitable for
// 8kHz 20ms telephony frames.
type Config struct {
	// CalibrationFrames is how many initial frames measure the noise floor.
	// 50 frames is one second of audio.
	CalibrationFrames int
	// SpeechFrames is how many consecutive loud frames start speech (~60ms).
	SpeechFrames int
	// SilenceFrames is how many consecutive quiet frames end speech (~400ms).
	SilenceFrames int
	// MinThreshold floors the speech threshold regardless of noise floor.
	MinThreshold float64
}

func New(cfg Config) *Detector {
	if cfg.CalibrationFrames <= 0 {
		cfg.CalibrationFrames = 50
	}
	if cfg.SpeechFrames <= 0 {
		cfg.SpeechFrames = 3
	}
	if cfg.SilenceFrames <= 0 {
		cfg.SilenceFrames = 20
	}
	if cfg.MinThreshold <= 0 {
		cfg.MinThreshold = 500
	}
	return &Detector{
		calibrationFrames: cfg.CalibrationFrames,
		speechFrames:      cfg.SpeechFrames,
		silenceFrames:     cfg.SilenceFrames,
		minThreshold:      cfg.MinThreshold,
	}
}

// Calibrated reports whether the initial noise-floor window has completed.
// Until then ProcessFrame never reports speech.
func (d *Detector) Calibrated() bool {
	return d.seen >= d.calibrationFrames
}

// ProcessFrame consumes one frame of samples and reports the current speaking
// state plus start/end edges. Hysteresis via consecutive-frame counting keeps
// the state from flickering on breath noise.
func (d *Detector) ProcessFrame(samples []int16) (speaking, started, ended bool) {
	level := rms(samples)

	if !d.Calibrated() {
		d.seen++
		d.noiseSum += level
		if d.Calibrated() {
			floor := d.noiseSum / float64(d.calibrationFrames)
			d.speechLevel = math.Max(floor*3, d.minThreshold)
			d.silenceLevel = math.Max(floor*1.5, d.minThreshold/2)
		}
		return false, false, false
	}

	if level >= d.speechLevel {
		d.silenceCount = 0
		d.speechCount++
		if !d.inSpeech && d.speechCount >= d.speechFrames {
			d.inSpeech = true
			started = true
		}
	} else if level < d.silenceLevel {
		d.speechCount = 0
		d.silenceCount++
		if d.inSpeech && d.silenceCount >= d.silenceFrames {
			d.inSpeech = false
			d.silenceCount = 0
			ended = true
		}
	} else {
		// Between thresholds: hold the current state.
		d.speechCount = 0
		d.silenceCount = 0
	}
	return d.inSpeech, started, ended
}

// Reset clears speech state but keeps calibration.
func (d *Detector) Reset() {
	d.inSpeech = false
	d.speechCount = 0
	d.silenceCount = 0
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
