package protocol

import "bytes"

func isStartMarker(b byte) bool {
	return b == SOH || b == ACK || b == NAK
}

// Split cuts buf into complete frames. A frame runs from a start marker
// (SOH, ACK or NAK) to the next ETX. Bytes before a start marker are noise
// and are dropped. An unterminated frame is returned as the remainder, to be
// prepended to the next chunk read from the same connection.
//
// The returned slices never alias buf.
func Split(buf []byte) (frames [][]byte, remainder []byte) {
	pos := 0
	for pos < len(buf) {
		start := -1
		for i := pos; i < len(buf); i++ {
			if isStartMarker(buf[i]) {
				start = i
				break
			}
		}
		if start == -1 {
			return frames, nil
		}

		end := bytes.IndexByte(buf[start+1:], ETX)
		if end == -1 {
			return frames, bytes.Clone(buf[start:])
		}
		end += start + 1

		frames = append(frames, bytes.Clone(buf[start:end+1]))
		pos = end + 1
	}
	return frames, nil
}

// Reassembler carries the unterminated tail of one connection between reads.
// The zero value is ready to use. It is not safe for concurrent use; each
// connection owns its own.
type Reassembler struct {
	remainder []byte
}

// Feed appends chunk to any held remainder and returns the complete frames
// in arrival order.
func (r *Reassembler) Feed(chunk []byte) [][]byte {
	buf := chunk
	if len(r.remainder) > 0 {
		buf = append(r.remainder, chunk...)
	}
	frames, rest := Split(buf)
	r.remainder = rest
	return frames
}

// Pending returns the number of buffered bytes awaiting an end marker.
func (r *Reassembler) Pending() int { return len(r.remainder) }

// Reset drops any buffered bytes. Call it whenever the connection is
// replaced.
func (r *Reassembler) Reset() { r.remainder = nil }
