package core

// streaming.go wraps import sources so the CSV reader sees clean UTF-8:
//
//   - BOMSkippingReader drops a leading UTF-8 byte-order mark (EF BB BF),
//     which spreadsheet exports on Windows add.
//   - UTF8Sanitizer replaces invalid UTF-8 bytes with '?' as it streams.
//   - CountingReader tracks bytes consumed for the import log.
//
// WrapForStreaming applies all three in the right order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader removes a leading UTF-8 BOM on first read.
type BOMSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{br: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		head, err := r.br.Peek(len(utf8BOM))
		if bytes.Equal(head, utf8BOM) {
			_, _ = r.br.Discard(len(utf8BOM))
		} else if err != nil && err != io.EOF {
			return 0, err
		}
	}
	return r.br.Read(p)
}

// UTF8Sanitizer streams its source, replacing every byte that is not part
// of a valid UTF-8 sequence with '?'. Memory use is constant.
type UTF8Sanitizer struct {
	src     *bufio.Reader
	pending []byte // encoded rune bytes that did not fit the caller's buffer
	err     error  // deferred read error
}

// NewUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{src: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	if n == 0 && s.err != nil {
		return 0, s.err
	}

	var buf [utf8.UTFMax]byte
	for n < len(p) && s.err == nil {
		r, size, err := s.src.ReadRune()
		if err != nil {
			s.err = err
			break
		}

		if r == utf8.RuneError && size == 1 {
			p[n] = '?'
			n++
			continue
		}

		w := utf8.EncodeRune(buf[:], r)
		c := copy(p[n:], buf[:w])
		n += c
		if c < w {
			s.pending = append(s.pending, buf[c:w]...)
		}
	}

	if n == 0 {
		return 0, s.err
	}
	return n, nil
}

// CountingReader tracks the number of bytes read through it.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// WrapForStreaming prepares a raw import source for CSV parsing. The BOM
// is stripped before sanitizing so its bytes are never rewritten, and the
// counter sits outermost so it reports what the CSV reader consumed.
func WrapForStreaming(r io.Reader) *CountingReader {
	return NewCountingReader(NewUTF8Sanitizer(NewBOMSkippingReader(r)))
}
