package comm

// DefaultRingSize is the capacity used for serial input by default.
const DefaultRingSize = 1000

// RingBuffer is a fixed capacity FIFO of bytes.
// A push on a full buffer is rejected, the oldest bytes are never overwritten.
type RingBuffer struct {
	data   []byte
	read   int // next pop
	write  int // next push
	length int
}

// NewRingBuffer creates a RingBuffer holding up to capacity bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingBuffer{data: make([]byte, capacity)}
}

// Len returns the number of buffered bytes.
func (r *RingBuffer) Len() int {
	return r.length
}

// Cap returns the capacity.
func (r *RingBuffer) Cap() int {
	return len(r.data)
}

// Free returns the number of bytes which can still be pushed.
func (r *RingBuffer) Free() int {
	return len(r.data) - r.length
}

// Push appends one byte.
func (r *RingBuffer) Push(b byte) error {
	if r.length >= len(r.data) {
		return ErrBufferFull
	}
	r.data[r.write] = b
	r.write = (r.write + 1) % len(r.data)
	r.length++
	return nil
}

// Write implements io.Writer. It stops at the first rejected byte.
func (r *RingBuffer) Write(p []byte) (int, error) {
	for n, b := range p {
		if err := r.Push(b); err != nil {
			return n, err
		}
	}
	return len(p), nil
}

// PopFront consumes up to n bytes from the front.
func (r *RingBuffer) PopFront(n int) []byte {
	if n > r.length {
		n = r.length
	}
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = r.data[r.read]
		r.read = (r.read + 1) % len(r.data)
	}
	r.length -= n
	return out
}

// Discard drops up to n bytes from the front and returns how many were dropped.
func (r *RingBuffer) Discard(n int) int {
	if n > r.length {
		n = r.length
	}
	if n <= 0 {
		return 0
	}
	r.read = (r.read + n) % len(r.data)
	r.length -= n
	return n
}

// Peek returns the byte at offset from the front without consuming it.
func (r *RingBuffer) Peek(offset int) (byte, bool) {
	if offset < 0 || offset >= r.length {
		return 0, false
	}
	return r.data[(r.read+offset)%len(r.data)], true
}

// Search returns the offset of the first value at or after from, or -1.
func (r *RingBuffer) Search(value byte, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < r.length; i++ {
		if r.data[(r.read+i)%len(r.data)] == value {
			return i
		}
	}
	return -1
}

// Sum returns the 8-bit wrapping sum of the bytes in [from, to).
func (r *RingBuffer) Sum(from, to int) (sum byte, ok bool) {
	if from < 0 || to > r.length || from > to {
		return 0, false
	}
	for i := from; i < to; i++ {
		sum += r.data[(r.read+i)%len(r.data)]
	}
	return sum, true
}

// Copy copies the bytes in [from, to) without consuming them.
func (r *RingBuffer) Copy(from, to int) []byte {
	if from < 0 || to > r.length || from >= to {
		return nil
	}
	out := make([]byte, to-from)
	for i := range out {
		out[i] = r.data[(r.read+from+i)%len(r.data)]
	}
	return out
}

// Reinit empties the buffer. The storage is kept.
func (r *RingBuffer) Reinit() {
	r.read, r.write, r.length = 0, 0, 0
}
