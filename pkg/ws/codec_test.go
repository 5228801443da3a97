package ws_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/lolyay/gma4j-go/pkg/ws"
)

func TestEncodeDecode_RoundTripNoKey(t *testing.T) {
	msg := &ws.PacketPing{Timestamp: 12345, SequenceID: 7}

	text, err := ws.Encode(msg, nil, ws.NoCompression)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := ws.Decode(text, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	got, ok := decoded.(*ws.PacketPing)
	if !ok {
		t.Fatalf("expected *ws.PacketPing, got %T", decoded)
	}
	if got.Timestamp != msg.Timestamp || got.SequenceID != msg.SequenceID {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestEncodeDecode_RoundTripWithKey(t *testing.T) {
	key, err := ws.GenerateSharedSecret()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	msg := &ws.PacketIdentification{ClientIdentifier: "smp", Metadata: "region=eu"}

	text, err := ws.Encode(msg, key, ws.NoCompression)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var probe struct {
		Encrypted  bool `json:"encrypted"`
		Compressed bool `json:"compressed"`
	}
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		t.Fatalf("unmarshal probe: %v", err)
	}
	if !probe.Encrypted {
		t.Error("expected encrypted envelope when a key is supplied")
	}
	if probe.Compressed {
		t.Error("an envelope must never be both encrypted and compressed")
	}

	decoded, err := ws.Decode(text, key)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	got, ok := decoded.(*ws.PacketIdentification)
	if !ok {
		t.Fatalf("expected *ws.PacketIdentification, got %T", decoded)
	}
	if got.ClientIdentifier != msg.ClientIdentifier || got.Metadata != msg.Metadata {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestDecode_EncryptedWithoutKeyFails(t *testing.T) {
	key, err := ws.GenerateSharedSecret()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	text, err := ws.Encode(&ws.PacketPing{Timestamp: 1, SequenceID: 1}, key, ws.NoCompression)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := ws.Decode(text, nil); err == nil {
		t.Fatal("expected decode without a key to fail on an encrypted frame")
	}
}

func TestEncode_CompressesLargePayloadAboveThreshold(t *testing.T) {
	// A long, highly repetitive metadata string compresses well under gzip.
	msg := &ws.PacketIdentification{
		ClientIdentifier: "smp",
		Metadata:         strings.Repeat("a", 2000),
	}

	text, err := ws.Encode(msg, nil, 100)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var probe struct {
		Compressed bool `json:"compressed"`
	}
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		t.Fatalf("unmarshal probe: %v", err)
	}
	if !probe.Compressed {
		t.Fatal("expected large repetitive payload to be compressed")
	}

	decoded, err := ws.Decode(text, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(*ws.PacketIdentification)
	if !ok {
		t.Fatalf("expected *ws.PacketIdentification, got %T", decoded)
	}
	if got.Metadata != msg.Metadata {
		t.Error("decoded metadata does not match original")
	}
}

func TestEncode_SkipsCompressionWhenItDoesNotHelp(t *testing.T) {
	// Short, high-entropy-looking payload just above a tiny threshold:
	// gzip overhead means the compressed form is not actually smaller.
	msg := &ws.PacketPing{Timestamp: 1700000000000, SequenceID: 42}

	text, err := ws.Encode(msg, nil, 5)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var probe struct {
		Compressed bool `json:"compressed"`
	}
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		t.Fatalf("unmarshal probe: %v", err)
	}
	if probe.Compressed {
		t.Error("expected small payload to fall back to uncompressed emission")
	}
}

func TestDecode_UnknownTagFails(t *testing.T) {
	if _, err := ws.Decode(`{"type":"PacketNoSuchThing","data":{}}`, nil); err == nil {
		t.Fatal("expected unknown packet type to fail decode")
	}
}
