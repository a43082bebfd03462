package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const hexDigits = "0123456789ABCDEF"

func appendHexByte(dst []byte, b byte) []byte {
	return append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
}

func parseHexByte(s []byte) (byte, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadHex, s)
	}
	hi, ok1 := hexValue(s[0])
	lo, ok2 := hexValue(s[1])
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("%w: %q", ErrBadHex, s)
	}
	return hi<<4 | lo, nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// AsciiToHex returns the uppercase hex encoding of text, two characters per
// byte.
func AsciiToHex(text string) string {
	return strings.ToUpper(hex.EncodeToString([]byte(text)))
}

// HexToAscii decodes a hex string produced by AsciiToHex.
func HexToAscii(h string) (string, error) {
	if len(h)%2 != 0 {
		return "", fmt.Errorf("%w: odd length %d", ErrBadHex, len(h))
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadHex, err)
	}
	return string(b), nil
}

// fieldWriter appends hex-ASCII encoded fields.
type fieldWriter struct {
	buf []byte
}

func (w *fieldWriter) byte(b byte) *fieldWriter {
	w.buf = appendHexByte(w.buf, b)
	return w
}

func (w *fieldWriter) bool(v bool) *fieldWriter {
	if v {
		return w.byte(1)
	}
	return w.byte(0)
}

func (w *fieldWriter) uint16(v uint16) *fieldWriter {
	return w.byte(byte(v >> 8)).byte(byte(v))
}

// raw appends characters that are already hex-ASCII encoded.
func (w *fieldWriter) raw(s string) *fieldWriter {
	w.buf = append(w.buf, s...)
	return w
}

func (w *fieldWriter) dateTime(t DateTime) *fieldWriter {
	return w.byte(t.Day).byte(t.Month).uint16(t.Year).byte(t.Hour).byte(t.Minute).byte(t.Second)
}

func (w *fieldWriter) bytes() []byte { return w.buf }

// fieldReader consumes hex-ASCII encoded fields. The first failure sticks
// and every later read returns zero values, so decoders check err once at
// the end.
type fieldReader struct {
	mi   MICode
	data []byte
	pos  int
	err  error
}

func newFieldReader(mi MICode, data []byte) *fieldReader {
	return &fieldReader{mi: mi, data: data}
}

func (r *fieldReader) fail(field string, err error) {
	if r.err == nil {
		r.err = &DecodeError{MI: r.mi, Field: field, Offset: r.pos, Err: err}
	}
}

func (r *fieldReader) take(field string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.fail(field, fmt.Errorf("%w: need %d characters, have %d", ErrShortPayload, n, len(r.data)-r.pos))
		return nil
	}
	s := r.data[r.pos : r.pos+n]
	r.pos += n
	return s
}

func (r *fieldReader) byte(field string) byte {
	s := r.take(field, 2)
	if s == nil {
		return 0
	}
	b, err := parseHexByte(s)
	if err != nil {
		r.pos -= 2
		r.fail(field, err)
		return 0
	}
	return b
}

func (r *fieldReader) bool(field string) bool {
	return r.byte(field) != 0
}

func (r *fieldReader) uint16(field string) uint16 {
	hi := r.byte(field)
	lo := r.byte(field)
	return uint16(hi)<<8 | uint16(lo)
}

// hexString returns n bytes of payload as their hex characters, validated.
func (r *fieldReader) hexString(field string, n int) string {
	s := r.take(field, 2*n)
	if s == nil {
		return ""
	}
	for i := 0; i < len(s); i++ {
		if _, ok := hexValue(s[i]); !ok {
			r.pos -= 2 * n
			r.fail(field, fmt.Errorf("%w: %q", ErrBadHex, s))
			return ""
		}
	}
	return strings.ToUpper(string(s))
}

// ascii returns n bytes of payload decoded from hex to text.
func (r *fieldReader) ascii(field string, n int) string {
	h := r.hexString(field, n)
	if r.err != nil {
		return ""
	}
	text, err := HexToAscii(h)
	if err != nil {
		r.fail(field, err)
		return ""
	}
	return text
}

func (r *fieldReader) dateTime(field string) DateTime {
	return DateTime{
		Day:    r.byte(field + ".day"),
		Month:  r.byte(field + ".month"),
		Year:   r.uint16(field + ".year"),
		Hour:   r.byte(field + ".hour"),
		Minute: r.byte(field + ".minute"),
		Second: r.byte(field + ".second"),
	}
}

// rest returns every unread character.
func (r *fieldReader) rest() []byte {
	if r.err != nil {
		return nil
	}
	s := r.data[r.pos:]
	r.pos = len(r.data)
	return s
}

func (r *fieldReader) remaining() int { return len(r.data) - r.pos }
