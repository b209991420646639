package vad

import "testing"

func frameAt(level int16) []int16 {
	f := make([]int16, 160)
	for i := range f {
		if i%2 == 0 {
			f[i] = level
		} else {
			f[i] = -level
		}
	}
	return f
}

func TestNoSpeechBeforeCalibration(t *testing.T) {
	d := New(Config{CalibrationFrames: 10})
	loud := frameAt(8000)
	for i := 0; i < 9; i++ {
		speaking, started, _ := d.ProcessFrame(loud)
		if speaking || started {
			t.Fatalf("frame %d: speech reported during calibration", i)
		}
		if d.Calibrated() {
			t.Fatalf("frame %d: calibrated too early", i)
		}
	}
	d.ProcessFrame(loud)
	if !d.Calibrated() {
		t.Fatalf("not calibrated after window")
	}
}

func TestSpeechStartAndEndEdges(t *testing.T) {
	d := New(Config{CalibrationFrames: 5, SpeechFrames: 3, SilenceFrames: 4})
	quiet := frameAt(50)
	loud := frameAt(8000)

	for i := 0; i < 5; i++ {
		d.ProcessFrame(quiet)
	}

	sawStart := false
	for i := 0; i < 5; i++ {
		_, started, _ := d.ProcessFrame(loud)
		if started {
			if i < 2 {
				t.Fatalf("speech started after only %d frames", i+1)
			}
			sawStart = true
		}
	}
	if !sawStart {
		t.Fatalf("speech never started")
	}

	sawEnd := false
	for i := 0; i < 6; i++ {
		_, _, ended := d.ProcessFrame(quiet)
		if ended {
			sawEnd = true
		}
	}
	if !sawEnd {
		t.Fatalf("speech never ended")
	}
}

func TestBriefNoiseDoesNotStartSpeech(t *testing.T) {
	d := New(Config{CalibrationFrames: 5, SpeechFrames: 3})
	quiet := frameAt(50)
	loud := frameAt(8000)
	for i := 0; i < 5; i++ {
		d.ProcessFrame(quiet)
	}
	// Two loud frames, under the three-frame hysteresis.
	for i := 0; i < 2; i++ {
		if speaking, _, _ := d.ProcessFrame(loud); speaking {
			t.Fatalf("two-frame pop reported as speech")
		}
	}
	if speaking, _, _ := d.ProcessFrame(quiet); speaking {
		t.Fatalf("speech latched after pop")
	}
}
