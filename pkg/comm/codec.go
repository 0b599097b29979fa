package comm

import "fmt"

// Envelope bytes.
const (
	Header byte = 0xED
	Footer byte = 0xEE
	Escape byte = 0xE9
)

const (
	// MinOverhead is the envelope size around the escaped command packet:
	// header, length, checksum and footer.
	MinOverhead = 4

	// DefaultMaxEncodedBytes is the frame size of v2 peers.
	DefaultMaxEncodedBytes = 200
	// MaxEncodedBytesV1 is the frame size of v1 peers.
	MaxEncodedBytesV1 = 48

	// maxEncodedLimit is bound by the 8-bit length field.
	maxEncodedLimit = 0xff + MinOverhead
	minEncodedLimit = MinOverhead + Overhead + 1
)

// CheckMaxEncodedBytes validates a frame size setting.
func CheckMaxEncodedBytes(n int) error {
	if n < minEncodedLimit || n > maxEncodedLimit {
		return fmt.Errorf("max encoded bytes %d out of range [%d, %d]", n, minEncodedLimit, maxEncodedLimit)
	}
	return nil
}

// Codec converts Frames to and from the wire envelope.
// The codec owns the outgoing sequence counter, so each channel needs its own.
type Codec struct {
	maxEncoded int
	seq        Sequence
}

// NewCodec creates a Codec. Out of range sizes fall back to DefaultMaxEncodedBytes.
func NewCodec(maxEncoded int) *Codec {
	if CheckMaxEncodedBytes(maxEncoded) != nil {
		maxEncoded = DefaultMaxEncodedBytes
	}
	return &Codec{maxEncoded: maxEncoded}
}

// MaxEncodedBytes returns the largest envelope produced.
func (c *Codec) MaxEncodedBytes() int {
	return c.maxEncoded
}

// PayloadCapacity is the largest payload which fits if nothing needs escaping.
func (c *Codec) PayloadCapacity() int {
	return c.maxEncoded - MinOverhead - Overhead
}

// LastSequence returns the sequence of the last encoded frame.
func (c *Codec) LastSequence() Sequence {
	return c.seq
}

// Encode assigns the next sequence number to f and encodes it.
// The counter only advances when encoding succeeds.
func (c *Codec) Encode(f *Frame) ([]byte, error) {
	next := *f
	next.Seq = c.seq.Next()
	b, err := Marshal(&next, c.maxEncoded)
	if err != nil {
		return nil, err
	}
	c.seq = next.Seq
	f.Seq = next.Seq
	return b, nil
}

// Marshal encodes f with its own sequence number.
func Marshal(f *Frame, maxEncoded int) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if maxEncoded > maxEncodedLimit {
		maxEncoded = maxEncodedLimit
	}
	pkt := f.packet()
	out := make([]byte, 2, len(pkt)+MinOverhead+4)
	out[0] = Header
	for _, b := range pkt {
		if b == Header || b == Footer || b == Escape {
			out = append(out, Escape)
		}
		out = append(out, b)
	}
	n := len(out) - 2
	if n+MinOverhead > maxEncoded {
		return nil, fmt.Errorf("%w: %d bytes encoded, max %d", ErrPayloadTooLarge, n+MinOverhead, maxEncoded)
	}
	out[1] = byte(n)
	var sum byte
	for _, b := range out[2:] {
		sum += b
	}
	return append(out, sum, Footer), nil
}

// Cleanup discards bytes before the first header, which can't start a frame.
// Without any header, everything is discarded.
func (c *Codec) Cleanup(rb *RingBuffer) int {
	pos := rb.Search(Header, 0)
	if pos < 0 {
		pos = rb.Len()
	}
	return rb.Discard(pos)
}

// Decode extracts one frame from rb.
//
// ErrIncomplete means more bytes are needed, nothing worth keeping was lost.
// An error wrapping ErrMalformed means the first frame candidate was
// corrupted, its header byte is dropped so the next call resynchronizes.
func (c *Codec) Decode(rb *RingBuffer) (*Frame, error) {
	if rb.Len() < MinOverhead {
		return nil, ErrIncomplete
	}
	c.Cleanup(rb)
	var firstErr error
	for pos := 0; pos >= 0; pos = rb.Search(Header, pos+1) {
		f, span, err := decodeAt(rb, pos)
		if err == nil {
			rb.Discard(pos + span)
			return f, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil || firstErr == ErrIncomplete {
		return nil, ErrIncomplete
	}
	rb.Discard(1)
	return nil, firstErr
}

// decodeAt validates the candidate starting at pos and returns the frame
// and the number of bytes it spans.
func decodeAt(rb *RingBuffer, pos int) (*Frame, int, error) {
	nb, ok := rb.Peek(pos + 1)
	if !ok {
		return nil, 0, ErrIncomplete
	}
	n := int(nb)
	span := n + MinOverhead
	if span > rb.Cap() {
		return nil, 0, malformed("declared length %d exceeds buffer capacity %d", n, rb.Cap())
	}
	if pos+span > rb.Len() {
		return nil, 0, ErrIncomplete
	}
	if b, _ := rb.Peek(pos + span - 1); b != Footer {
		return nil, 0, malformed("footer 0x%02x", b)
	}
	sum, _ := rb.Sum(pos+2, pos+2+n)
	if expected, _ := rb.Peek(pos + 2 + n); expected != sum {
		return nil, 0, malformed("checksum 0x%02x, expected 0x%02x", sum, expected)
	}
	pkt, err := unescape(rb.Copy(pos+2, pos+2+n))
	if err != nil {
		return nil, 0, err
	}
	f, err := parsePacket(pkt)
	if err != nil {
		return nil, 0, err
	}
	return f, span, nil
}

func unescape(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == Escape {
			if i++; i >= len(b) {
				return nil, malformed("dangling escape")
			}
		}
		out = append(out, b[i])
	}
	return out, nil
}
