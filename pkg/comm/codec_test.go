package comm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeInto(t *testing.T, c *Codec, rb *RingBuffer, f *Frame) []byte {
	b, err := c.Encode(f)
	require.NoError(t, err)
	_, err = rb.Write(b)
	require.NoError(t, err)
	return b
}

func TestCodecFlexSEA(t *testing.T) {
	c := NewCodec(DefaultMaxEncodedBytes)
	rb := NewRingBuffer(DefaultRingSize)
	f := &Frame{Command: 23, Mode: ModeWrite, Payload: []byte("FlexSEA")}
	b := encodeInto(t, c, rb, f)
	require.Equal(t, []byte{
		0xed, 0x0a, 0x5e, 0x00, 0x01,
		'F', 'l', 'e', 'x', 'S', 'E', 'A',
		0xc7, 0xee,
	}, b)
	require.Equal(t, Sequence(1), f.Seq)

	d, err := c.Decode(rb)
	require.NoError(t, err)
	require.Equal(t, Command(23), d.Command)
	require.Equal(t, ModeWrite, d.Mode)
	require.Equal(t, []byte("FlexSEA"), d.Payload)
	require.Equal(t, Sequence(1), d.Seq)
	require.Equal(t, 0, rb.Len())
}

func TestCodecRoundTrip(t *testing.T) {
	c := NewCodec(DefaultMaxEncodedBytes)
	rb := NewRingBuffer(DefaultRingSize)
	testCases := []struct {
		name  string
		frame Frame
	}{
		{"empty", Frame{Command: 2, Mode: ModeRead}},
		{"who am i", Frame{Command: CmdWhoAmI, Mode: ModeReadWrite, Payload: []byte{1}}},
		{"escaped bytes", Frame{Command: 5, Mode: ModeWrite, Payload: []byte{Header, Footer, Escape, 0, Escape}}},
		{"escaped command byte", Frame{Command: 59, Mode: ModeWrite}}, // 59<<2|2 == 0xEE
		{"ack", Frame{Command: CmdAck, Mode: ModeWrite, Ack: Acked, Payload: AckPayload(3, 7)}},
		{"max command", Frame{Command: MaxCommand, Mode: ModeReadWrite, Payload: make([]byte, 190)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.frame
			encodeInto(t, c, rb, &f)
			d, err := c.Decode(rb)
			require.NoError(t, err)
			require.Equal(t, f.Command, d.Command)
			require.Equal(t, f.Mode, d.Mode)
			require.Equal(t, f.Ack, d.Ack)
			require.Equal(t, f.Seq, d.Seq)
			require.Equal(t, len(f.Payload), len(d.Payload))
			if len(f.Payload) > 0 {
				require.Equal(t, f.Payload, d.Payload)
			}
			require.Equal(t, 0, rb.Len())
		})
	}
}

func TestCodecEncodeErrors(t *testing.T) {
	c := NewCodec(MaxEncodedBytesV1)
	_, err := c.Encode(&Frame{Command: 64, Mode: ModeRead})
	require.True(t, errors.Is(err, ErrInvalidCommand))
	_, err = c.Encode(&Frame{Command: 2})
	require.True(t, errors.Is(err, ErrInvalidCommand))

	_, err = c.Encode(&Frame{Command: 2, Mode: ModeWrite, Payload: make([]byte, c.PayloadCapacity())})
	require.NoError(t, err)
	require.Equal(t, Sequence(1), c.LastSequence())

	_, err = c.Encode(&Frame{Command: 2, Mode: ModeWrite, Payload: make([]byte, c.PayloadCapacity()+1)})
	require.True(t, errors.Is(err, ErrPayloadTooLarge))

	escaped := make([]byte, c.PayloadCapacity())
	escaped[0] = Header
	_, err = c.Encode(&Frame{Command: 2, Mode: ModeWrite, Payload: escaped})
	require.True(t, errors.Is(err, ErrPayloadTooLarge), "escapes count against the frame size")
	require.Equal(t, Sequence(1), c.LastSequence(), "failed encodes don't consume sequence numbers")
}

func TestCodecSequenceWraps(t *testing.T) {
	c := NewCodec(0)
	require.Equal(t, DefaultMaxEncodedBytes, c.MaxEncodedBytes())
	c.seq = MaxSequence
	f := &Frame{Command: 2, Mode: ModeRead}
	_, err := c.Encode(f)
	require.NoError(t, err)
	require.Equal(t, Sequence(0), f.Seq)
}

func TestCheckMaxEncodedBytes(t *testing.T) {
	require.NoError(t, CheckMaxEncodedBytes(DefaultMaxEncodedBytes))
	require.NoError(t, CheckMaxEncodedBytes(MaxEncodedBytesV1))
	require.NoError(t, CheckMaxEncodedBytes(259))
	require.Error(t, CheckMaxEncodedBytes(260))
	require.Error(t, CheckMaxEncodedBytes(7))
}

func TestCodecDecodeIncomplete(t *testing.T) {
	c := NewCodec(DefaultMaxEncodedBytes)
	b, err := Marshal(&Frame{Command: 9, Mode: ModeRead, Seq: 3, Payload: []byte{1, 2, 3}}, DefaultMaxEncodedBytes)
	require.NoError(t, err)
	rb := NewRingBuffer(64)

	rb.Write(b[:3])
	_, err = c.Decode(rb)
	require.Equal(t, ErrIncomplete, err)
	require.Equal(t, 3, rb.Len(), "short input stays buffered")

	rb.Write(b[3 : len(b)-1])
	_, err = c.Decode(rb)
	require.Equal(t, ErrIncomplete, err)
	require.Equal(t, len(b)-1, rb.Len())

	rb.Write(b[len(b)-1:])
	f, err := c.Decode(rb)
	require.NoError(t, err)
	require.Equal(t, Command(9), f.Command)
	require.Equal(t, Sequence(3), f.Seq)
}

func TestCodecDecodeJunk(t *testing.T) {
	c := NewCodec(DefaultMaxEncodedBytes)
	rb := NewRingBuffer(64)
	rb.Write([]byte{1, 2, 3, 4, 5})
	_, err := c.Decode(rb)
	require.Equal(t, ErrIncomplete, err)
	require.Equal(t, 0, rb.Len())

	rb.Write([]byte{0x55, 0xaa})
	encodeInto(t, c, rb, &Frame{Command: 4, Mode: ModeWrite})
	f, err := c.Decode(rb)
	require.NoError(t, err)
	require.Equal(t, Command(4), f.Command)
	require.Equal(t, 0, rb.Len())
}

func TestCodecCleanup(t *testing.T) {
	c := NewCodec(DefaultMaxEncodedBytes)
	rb := NewRingBuffer(16)
	rb.Write([]byte{1, 2, Header, 3})
	require.Equal(t, 2, c.Cleanup(rb))
	require.Equal(t, 2, rb.Len())
	require.Equal(t, 0, c.Cleanup(rb))
}

func TestCodecDecodeCorrupted(t *testing.T) {
	good, err := Marshal(&Frame{Command: 7, Mode: ModeWrite, Seq: 10, Payload: []byte{1, 2}}, DefaultMaxEncodedBytes)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		corrupt func([]byte) []byte
	}{
		{"checksum", func(b []byte) []byte { b[len(b)-2]++; return b }},
		{"footer", func(b []byte) []byte { b[len(b)-1] = 0; return b }},
		{"payload", func(b []byte) []byte { b[5] ^= 0x10; return b }},
		{"mode", func(b []byte) []byte { b[2] &^= 3; b[len(b)-2] -= 2; return b }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCodec(DefaultMaxEncodedBytes)
			rb := NewRingBuffer(64)
			bad := tc.corrupt(append([]byte(nil), good...))
			rb.Write(bad)
			_, err := c.Decode(rb)
			require.True(t, errors.Is(err, ErrMalformed), "got %v", err)
			require.Equal(t, len(bad)-1, rb.Len(), "only the header is dropped")

			rb.Write(good)
			f, err := c.Decode(rb)
			require.NoError(t, err, "decoder resynchronizes on the next frame")
			require.Equal(t, Sequence(10), f.Seq)
			require.Equal(t, 0, rb.Len())
		})
	}
}

func TestCodecDecodeSkipsBrokenCandidate(t *testing.T) {
	c := NewCodec(DefaultMaxEncodedBytes)
	rb := NewRingBuffer(64)
	// a truncated frame followed by a complete one
	rb.Write([]byte{Header, 0x20, 0x09})
	encodeInto(t, c, rb, &Frame{Command: 8, Mode: ModeRead})
	f, err := c.Decode(rb)
	require.NoError(t, err)
	require.Equal(t, Command(8), f.Command)
	require.Equal(t, 0, rb.Len())
}

func TestCodecDecodeOversizedLength(t *testing.T) {
	c := NewCodec(DefaultMaxEncodedBytes)
	rb := NewRingBuffer(32)
	rb.Write([]byte{Header, 0xf0, 1, 2})
	_, err := c.Decode(rb)
	require.True(t, errors.Is(err, ErrMalformed))
	require.Equal(t, 3, rb.Len())
}

func TestCodecDecodeStream(t *testing.T) {
	c := NewCodec(DefaultMaxEncodedBytes)
	rb := NewRingBuffer(DefaultRingSize)
	for i := 0; i < 20; i++ {
		encodeInto(t, c, rb, &Frame{Command: Command(i), Mode: ModeReadWrite, Payload: []byte{byte(i), Header}})
	}
	for i := 0; i < 20; i++ {
		f, err := c.Decode(rb)
		require.NoError(t, err)
		require.Equal(t, Command(i), f.Command)
		require.Equal(t, Sequence(i+1), f.Seq)
	}
	_, err := c.Decode(rb)
	require.Equal(t, ErrIncomplete, err)
}
