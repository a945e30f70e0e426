package packet

import "testing"

func TestTimestampPayloadRoundTrip(t *testing.T) {
	payload := TimestampPayload([]byte("probe"))

	ts, ok := ExtractTimestamp(payload)
	if !ok {
		t.Fatal("ExtractTimestamp reported no timestamp present")
	}
	if ts.IsZero() {
		t.Error("extracted timestamp is zero")
	}
}

func TestExtractTimestampRejectsShortPayload(t *testing.T) {
	if _, ok := ExtractTimestamp([]byte{1, 2, 3}); ok {
		t.Error("expected ok=false for payload shorter than 8 bytes")
	}
}

func TestBuildICMPv4EchoChecksumValidates(t *testing.T) {
	buf := BuildICMPv4Echo(ICMPEcho{
		Type:       ICMPv4EchoRequest,
		Identifier: 42,
		Sequence:   1,
		Payload:    TimestampPayload(nil),
	})
	if !ValidateChecksum(buf) {
		t.Error("ICMPv4 echo checksum does not validate")
	}
}
