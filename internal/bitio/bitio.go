// Package bitio provides the bit-level I/O primitives tier-1 and tier-2
// share: plain bit read/write, byte-stuffed bit read/write for packet
// headers and MQ-coded segments, the number-of-coding-passes VLC, and the
// comma-coded length fields used by Lblock increments and by PLT/TLM.
package bitio

import (
	"bytes"
	"fmt"
	"io"
)

// Reader provides bit-level reading from a byte stream.
type Reader struct {
	r   io.Reader
	buf byte
	cnt uint8
}

// NewReader creates a new bit reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadBit reads a single bit (0 or 1).
func (r *Reader) ReadBit() (int, error) {
	if r.cnt == 0 {
		var b [1]byte
		if _, err := io.ReadFull(r.r, b[:]); err != nil {
			return 0, err
		}
		r.buf = b[0]
		r.cnt = 8
	}
	r.cnt--
	return int((r.buf >> r.cnt) & 1), nil
}

// ReadBits reads n bits (1-32), MSB first.
func (r *Reader) ReadBits(n uint) (uint32, error) {
	var result uint32
	for i := uint(0); i < n; i++ {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		result = (result << 1) | uint32(bit)
	}
	return result, nil
}

// Align discards any remaining bits in the current byte.
func (r *Reader) Align() {
	r.cnt = 0
}

// Writer provides bit-level writing to a byte stream.
type Writer struct {
	w   io.Writer
	buf byte
	cnt uint8
}

// NewWriter creates a new bit writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteBit writes a single bit.
func (w *Writer) WriteBit(bit int) error {
	w.buf = (w.buf << 1) | byte(bit&1)
	w.cnt++
	if w.cnt == 8 {
		return w.flushByte()
	}
	return nil
}

// WriteBits writes the low n bits of val, MSB first.
func (w *Writer) WriteBits(val uint32, n uint) error {
	for i := n; i > 0; i-- {
		if err := w.WriteBit(int((val >> (i - 1)) & 1)); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) flushByte() error {
	b := [1]byte{w.buf}
	_, err := w.w.Write(b[:])
	w.buf, w.cnt = 0, 0
	return err
}

// Flush writes any remaining bits, zero-padded.
func (w *Writer) Flush() error {
	if w.cnt > 0 {
		w.buf <<= 8 - w.cnt
		return w.flushByte()
	}
	return nil
}

// MarkerError reports that a marker-range byte (0xFF followed by a byte
// >= 0x90) was encountered while reading a byte-stuffed bitstream, per
// spec §4.1. SOP/EPH (0xFF91/0xFF92) set SOPOrEPH but still fail: callers
// decide whether that is expected (bracketing markers) or an error.
type MarkerError struct {
	Value    byte // the byte following 0xFF
	SOPOrEPH bool
}

func (e *MarkerError) Error() string {
	if e.SOPOrEPH {
		return fmt.Sprintf("bitio: unexpected SOP/EPH marker 0xFF%02X inside packet header", e.Value)
	}
	return fmt.Sprintf("bitio: marker 0xFF%02X encountered inside byte-stuffed stream", e.Value)
}

// ByteStuffingReader reads a bit stream with JPEG 2000 byte stuffing: a
// 0xFF byte is always followed by a byte with its top bit forced to 0
// (only 7 payload bits). A 0xFF followed by a byte >= 0x90 signals a
// marker was reached; ReadBit returns a *MarkerError in that case without
// consuming the marker byte from further bit reads.
type ByteStuffingReader struct {
	r       io.Reader
	buf     byte
	cnt     uint8
	sawFF   bool
	pending *MarkerError
}

// NewByteStuffingReader creates a reader that undoes byte stuffing.
func NewByteStuffingReader(r io.Reader) *ByteStuffingReader {
	return &ByteStuffingReader{r: r}
}

// ReadBit reads a single destuffed bit.
func (r *ByteStuffingReader) ReadBit() (int, error) {
	if r.pending != nil {
		return 0, r.pending
	}
	if r.cnt == 0 {
		var b [1]byte
		if _, err := io.ReadFull(r.r, b[:]); err != nil {
			return 0, err
		}
		if r.sawFF && b[0] >= 0x90 {
			r.pending = &MarkerError{Value: b[0], SOPOrEPH: b[0] == 0x91 || b[0] == 0x92}
			return 0, r.pending
		}
		if r.sawFF {
			r.cnt = 7
		} else {
			r.cnt = 8
		}
		r.sawFF = b[0] == 0xFF
		r.buf = b[0]
	}
	r.cnt--
	return int((r.buf >> r.cnt) & 1), nil
}

// ReadBits reads n destuffed bits (1-32), MSB first.
func (r *ByteStuffingReader) ReadBits(n uint) (uint32, error) {
	var result uint32
	for i := uint(0); i < n; i++ {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		result = (result << 1) | uint32(bit)
	}
	return result, nil
}

// Align discards remaining bits in the current byte.
func (r *ByteStuffingReader) Align() {
	r.cnt = 0
}

// ByteStuffingWriter writes a bit stream with JPEG 2000 byte stuffing.
type ByteStuffingWriter struct {
	w     io.Writer
	buf   byte
	cnt   uint8
	delay bool
}

// NewByteStuffingWriter creates a writer that applies byte stuffing.
func NewByteStuffingWriter(w io.Writer) *ByteStuffingWriter {
	return &ByteStuffingWriter{w: w}
}

// WriteBit writes a single bit, inserting a stuffing zero after any 0xFF byte.
func (w *ByteStuffingWriter) WriteBit(bit int) error {
	maxBits := uint8(8)
	if w.delay {
		maxBits = 7
	}
	w.buf = (w.buf << 1) | byte(bit&1)
	w.cnt++
	if w.cnt == maxBits {
		return w.flushByte()
	}
	return nil
}

// WriteBits writes the low n bits of val, MSB first, with byte stuffing.
func (w *ByteStuffingWriter) WriteBits(val uint32, n uint) error {
	for i := n; i > 0; i-- {
		if err := w.WriteBit(int((val >> (i - 1)) & 1)); err != nil {
			return err
		}
	}
	return nil
}

func (w *ByteStuffingWriter) flushByte() error {
	b := [1]byte{w.buf}
	_, err := w.w.Write(b[:])
	w.delay = w.buf == 0xFF
	w.buf, w.cnt = 0, 0
	return err
}

// Flush writes remaining bits, zero-padded, adding the final stuffing byte
// when the last emitted byte was 0xFF (spec §4.1).
func (w *ByteStuffingWriter) Flush() error {
	if w.cnt > 0 {
		maxBits := uint8(8)
		if w.delay {
			maxBits = 7
		}
		w.buf <<= maxBits - w.cnt
		if err := w.flushByte(); err != nil {
			return err
		}
	}
	if w.delay {
		return w.flushByte()
	}
	return nil
}

// WriteNumPasses encodes the number-of-new-coding-passes field (1..164)
// with the variable-length code of spec §4.1: 1 bit for 1, 2 bits for 2,
// 4 bits for 3..5, 9 bits for 6..36, 16 bits for 37..164.
func WriteNumPasses(w *Writer, n int) error {
	switch {
	case n == 1:
		return w.WriteBits(0, 1)
	case n == 2:
		return w.WriteBits(0b10, 2)
	case n >= 3 && n <= 5:
		return w.WriteBits(0b1100+uint32(n-3), 4)
	case n >= 6 && n <= 36:
		return w.WriteBits(0b111100000+uint32(n-6), 9)
	case n >= 37 && n <= 164:
		return w.WriteBits(0b1111111110000000+uint32(n-37), 16)
	default:
		return fmt.Errorf("bitio: num-passes %d out of range [1,164]", n)
	}
}

// ReadNumPasses decodes the number-of-new-coding-passes field.
func ReadNumPasses(r *Reader) (int, error) {
	b0, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	if b0 == 0 {
		return 1, nil
	}
	b1, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	if b1 == 0 {
		return 2, nil
	}
	v2, err := r.ReadBits(2)
	if err != nil {
		return 0, err
	}
	if v2 != 0b11 {
		return 3 + int(v2), nil
	}
	v5, err := r.ReadBits(5)
	if err != nil {
		return 0, err
	}
	if v5 != 0b11111 {
		return 6 + int(v5), nil
	}
	v7, err := r.ReadBits(7)
	if err != nil {
		return 0, err
	}
	return 37 + int(v7), nil
}

// WriteUnaryIncrement writes the Lblock comma code: `inc` 1-bits followed
// by a terminating 0-bit (spec §4.6 item 4).
func WriteUnaryIncrement(w *Writer, inc int) error {
	for i := 0; i < inc; i++ {
		if err := w.WriteBit(1); err != nil {
			return err
		}
	}
	return w.WriteBit(0)
}

// ReadUnaryIncrement reads an Lblock comma code and returns the increment.
func ReadUnaryIncrement(r *Reader) (int, error) {
	inc := 0
	for {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit == 0 {
			return inc, nil
		}
		inc++
		if inc > 31 {
			return 0, fmt.Errorf("bitio: Lblock increment exceeds 31")
		}
	}
}

// CommaLengthWriter writes byte-aligned comma-coded lengths for PLT/TLM
// (spec §6): MSB-first 7-bit groups, continuation bit set on every byte
// but the last.
type CommaLengthWriter struct {
	w io.Writer
}

// NewCommaLengthWriter creates a comma-length writer.
func NewCommaLengthWriter(w io.Writer) *CommaLengthWriter {
	return &CommaLengthWriter{w: w}
}

// WriteLength writes val using the minimum number of 7-bit groups.
func (c *CommaLengthWriter) WriteLength(val uint32) error {
	var out [5]byte
	n := 0
	v := val
	for {
		out[4-n] = byte(v & 0x7F)
		if n > 0 {
			out[4-n] |= 0x80
		}
		v >>= 7
		n++
		if v == 0 {
			break
		}
	}
	_, err := c.w.Write(out[5-n:])
	return err
}

// CommaLengthReader reads comma-coded lengths written by CommaLengthWriter.
type CommaLengthReader struct {
	r io.ByteReader
}

// NewCommaLengthReader creates a comma-length reader.
func NewCommaLengthReader(r io.ByteReader) *CommaLengthReader {
	return &CommaLengthReader{r: r}
}

// ReadLength reads one comma-coded length value.
func (c *CommaLengthReader) ReadLength() (uint32, error) {
	var result uint32
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return 0, err
		}
		result = (result << 7) | uint32(b&0x7F)
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

// EncodeCommaLength is a convenience one-shot encoder used by TLM/PLT
// marker-segment assembly, returning the encoded bytes directly.
func EncodeCommaLength(val uint32) []byte {
	var buf bytes.Buffer
	_ = NewCommaLengthWriter(&buf).WriteLength(val)
	return buf.Bytes()
}
