package telephony

import (
	"errors"
	"testing"
)

func TestParseInboundStart(t *testing.T) {
	raw := `{"event":"start","call_id":"c1","tenant_id":"t1","backend":"openai","voice_id":"alloy","locale":"he","greeting_text":"shalom"}`
	parsed, err := ParseInbound([]byte(raw))
	if err != nil {
		t.Fatalf("ParseInbound() error = %v", err)
	}
	msg, ok := parsed.(StartMessage)
	if !ok {
		t.Fatalf("parsed type %T, want StartMessage", parsed)
	}
	if msg.CallID != "c1" || msg.TenantID != "t1" || msg.Locale != "he" {
		t.Fatalf("unexpected start: %+v", msg)
	}
}

func TestParseInboundRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{"event":"start","call_id":"c1"}`,
		`{"event":"media","call_id":"c1"}`,
		`{"event":"stop"}`,
		`{"event":"mark","call_id":"c1"}`,
	}
	for _, raw := range cases {
		if _, err := ParseInbound([]byte(raw)); err == nil {
			t.Fatalf("ParseInbound(%s) should fail", raw)
		}
	}
}

func TestParseInboundUnsupportedEvent(t *testing.T) {
	_, err := ParseInbound([]byte(`{"event":"dtmf","call_id":"c1"}`))
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("error = %v, want ErrUnsupportedEvent", err)
	}
}

func TestMediaPayloadRoundTrip(t *testing.T) {
	frame := make([]byte, 160)
	for i := range frame {
		frame[i] = byte(i)
	}
	msg := EncodeMediaMessage("c1", 7, frame)
	if msg.Seq != 7 || msg.Event != EventMedia {
		t.Fatalf("unexpected message: %+v", msg)
	}
	got, err := msg.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if len(got) != 160 || got[159] != 159 {
		t.Fatalf("payload corrupted: len=%d", len(got))
	}
}

func TestMediaPayloadRejectsBadBase64(t *testing.T) {
	msg := MediaMessage{Payload: "!!not-base64!!"}
	if _, err := msg.DecodePayload(); err == nil {
		t.Fatalf("DecodePayload() should fail")
	}
}
