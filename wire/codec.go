package wire

import (
	"bytes"

	bencode "github.com/jackpal/bencode-go"
)

// bufArena is a small free list of reusable marshalling buffers. Encode is
// always called synchronously from within a single node's tick -- the node
// core is strictly single-threaded cooperative -- so a small fixed pool
// with a non-blocking fallback is enough to avoid most allocation churn
// without risking a stall if a caller nests Encode calls.
type bufArena chan *bytes.Buffer

func newBufArena(numBlocks int) bufArena {
	a := make(bufArena, numBlocks)
	for i := 0; i < numBlocks; i++ {
		a <- new(bytes.Buffer)
	}
	return a
}

func (a bufArena) pop() *bytes.Buffer {
	select {
	case b := <-a:
		return b
	default:
		return new(bytes.Buffer)
	}
}

func (a bufArena) push(b *bytes.Buffer) {
	b.Reset()
	select {
	case a <- b:
	default:
		// Pool is full; let the buffer be collected.
	}
}

// pool backs every Encode call made by this process.
var pool = newBufArena(8)

// Encode bencodes an envelope for transmission over the substrate.
func Encode(e Envelope) ([]byte, error) {
	buf := pool.pop()
	defer pool.push(buf)
	if err := bencode.Marshal(buf, e); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Decode parses a wire-format payload back into an Envelope. The core
// requires only that round-trip decode yields an equal value; bencode gives
// us that for free on this flat, fixed-shape struct.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := bencode.Unmarshal(bytes.NewReader(data), &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
