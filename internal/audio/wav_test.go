package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteWAVPCM16LETo(t *testing.T) {
	pcm := PCM16ToBytes([]int16{0, 100, -100, 32000})

	var buf bytes.Buffer
	if err := WriteWAVPCM16LETo(&buf, pcm, TelephonyRate); err != nil {
		t.Fatalf("WriteWAVPCM16LETo() error = %v", err)
	}
	out := buf.Bytes()

	if len(out) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(out), 44+len(pcm))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: %q %q", out[0:4], out[8:12])
	}
	if rate := binary.LittleEndian.Uint32(out[24:28]); rate != TelephonyRate {
		t.Fatalf("sample rate = %d, want %d", rate, TelephonyRate)
	}
	if size := binary.LittleEndian.Uint32(out[40:44]); size != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", size, len(pcm))
	}
	if !bytes.Equal(out[44:], pcm) {
		t.Fatalf("payload does not round-trip")
	}
}

func TestWriteWAVPCM16LEFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call.wav")
	pcm := make([]byte, 320)

	if err := WriteWAVPCM16LEFile(path, pcm, TelephonyRate); err != nil {
		t.Fatalf("WriteWAVPCM16LEFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) != 44+len(pcm) {
		t.Fatalf("file len = %d, want %d", len(data), 44+len(pcm))
	}
}
