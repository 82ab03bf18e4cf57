package wire

import (
	"fmt"
	"testing"
)

// sameEnvelope reports whether two envelopes carry the same field values.
// Envelope holds a slice (NodePacket.Packets) and so cannot be compared
// with ==; a nil and an empty Packets slice print alike and count as equal.
func sameEnvelope(a, b Envelope) bool {
	return fmt.Sprintf("%+v", a) == fmt.Sprintf("%+v", b)
}

func TestEncodeDecodeHandshake(t *testing.T) {
	e := Handshake(2, 12345, 1)
	b, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !sameEnvelope(got, e) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestEncodeDecodeSessionPacket(t *testing.T) {
	p := NodePacket{
		Kind:      KindExchangeInfo,
		HasCoord:  true,
		Coord:     Coord{X: 3, Y: -4},
		PeerCount: 2,
		Ping:      17,
	}
	e := Session(999, p)
	b, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !sameEnvelope(got, e) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestEncodeDecodeNestedConnectionInit(t *testing.T) {
	inner := NodePacket{Kind: KindPing, PingID: 4}
	p := NodePacket{Kind: KindConnectionInit, PingID: 1, Packets: []NodePacket{inner}}
	e := Session(1, p)
	b, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Packet.Packets) != 1 || got.Packet.Packets[0].Kind != KindPing || got.Packet.Packets[0].PingID != 4 {
		t.Fatalf("nested packet mismatch: got %+v", got.Packet)
	}
}

func TestBufArenaReusesBuffers(t *testing.T) {
	a := newBufArena(1)
	b1 := a.pop()
	a.push(b1)
	b2 := a.pop()
	if b1 != b2 {
		t.Fatalf("expected the same buffer to be reused")
	}
	if b2.Len() != 0 {
		t.Fatalf("expected reused buffer to be reset, got len %d", b2.Len())
	}
}
