package stream

import "bytes"

// LineBuffer reassembles lines from chunks whose boundaries do not line up
// with line terminators.
type LineBuffer struct {
	pending []byte
}

// Feed appends chunk and returns every line completed by it, without
// terminators. The trailing partial segment stays buffered for the next call.
func (b *LineBuffer) Feed(chunk []byte) [][]byte {
	b.pending = append(b.pending, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		line := make([]byte, i)
		copy(line, b.pending[:i])
		lines = append(lines, bytes.TrimSuffix(line, []byte{'\r'}))
		b.pending = b.pending[i+1:]
	}

	if len(b.pending) == 0 {
		b.pending = nil
	}
	return lines
}

// Flush returns the buffered partial segment, if any, and empties the buffer.
func (b *LineBuffer) Flush() []byte {
	rest := b.pending
	b.pending = nil
	return rest
}

// Pending returns the number of buffered bytes.
func (b *LineBuffer) Pending() int {
	return len(b.pending)
}
