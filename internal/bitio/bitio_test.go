package bitio

import (
	"bytes"
	"errors"
	"testing"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	bits := []int{1, 0, 1, 1, 0, 0, 1, 0, 1, 1}
	for _, b := range bits {
		if err := w.WriteBit(b); err != nil {
			t.Fatalf("WriteBit: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()))
	for i, want := range bits {
		got, err := r.ReadBit()
		if err != nil {
			t.Fatalf("ReadBit(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("bit %d = %d, want %d", i, got, want)
		}
	}
}

func TestWriteBitsReadBits(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteBits(0x1A, 5); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	r := NewReader(bytes.NewReader(buf.Bytes()))
	got, err := r.ReadBits(5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x1A&0x1F {
		t.Errorf("ReadBits = %#x, want %#x", got, 0x1A&0x1F)
	}
}

func TestByteStuffingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewByteStuffingWriter(&buf)
	vals := []uint32{0xFF, 0x00, 0xAB, 0xFF, 0x7F}
	for _, v := range vals {
		if err := w.WriteBits(v, 8); err != nil {
			t.Fatalf("WriteBits(%#x): %v", v, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := NewByteStuffingReader(bytes.NewReader(buf.Bytes()))
	for i, want := range vals {
		got, err := r.ReadBits(8)
		if err != nil {
			t.Fatalf("ReadBits(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("value %d = %#x, want %#x", i, got, want)
		}
	}
}

func TestByteStuffingReaderMarkerError(t *testing.T) {
	data := []byte{0xFF, 0x93, 0x00}
	r := NewByteStuffingReader(bytes.NewReader(data))
	_, err := r.ReadBits(9)
	var merr *MarkerError
	if !errors.As(err, &merr) {
		t.Fatalf("expected *MarkerError, got %v", err)
	}
	if merr.Value != 0x93 || merr.SOPOrEPH {
		t.Errorf("unexpected MarkerError: %+v", merr)
	}
}

func TestByteStuffingReaderSOPIsStillAnError(t *testing.T) {
	data := []byte{0xFF, 0x91, 0x00, 0x04, 0x00, 0x00}
	r := NewByteStuffingReader(bytes.NewReader(data))
	_, err := r.ReadBits(9)
	var merr *MarkerError
	if !errors.As(err, &merr) {
		t.Fatalf("expected *MarkerError, got %v", err)
	}
	if !merr.SOPOrEPH {
		t.Errorf("expected SOPOrEPH=true for 0xFF91")
	}
}

func TestNumPassesVLCWidths(t *testing.T) {
	cases := []struct {
		n     int
		width uint
	}{
		{1, 1}, {2, 2}, {3, 4}, {5, 4}, {6, 9}, {36, 9}, {37, 16}, {164, 16},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := WriteNumPasses(w, c.n); err != nil {
			t.Fatalf("WriteNumPasses(%d): %v", c.n, err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		wantBytes := (c.width + 7) / 8
		if uint(len(buf.Bytes())) != wantBytes {
			t.Errorf("n=%d: wrote %d bytes, want %d (width %d bits)", c.n, len(buf.Bytes()), wantBytes, c.width)
		}
	}
}

func TestNumPassesVLCRoundTrip(t *testing.T) {
	for n := 1; n <= 164; n++ {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := WriteNumPasses(w, n); err != nil {
			t.Fatalf("WriteNumPasses(%d): %v", n, err)
		}
		w.WriteBits(0, 8) // pad so the reader never runs past EOF mid-field
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		r := NewReader(bytes.NewReader(buf.Bytes()))
		got, err := ReadNumPasses(r)
		if err != nil {
			t.Fatalf("ReadNumPasses after writing %d: %v", n, err)
		}
		if got != n {
			t.Errorf("round trip n=%d got %d", n, got)
		}
	}
}

func TestUnaryIncrementRoundTrip(t *testing.T) {
	for inc := 0; inc <= 31; inc++ {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := WriteUnaryIncrement(w, inc); err != nil {
			t.Fatalf("WriteUnaryIncrement(%d): %v", inc, err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		r := NewReader(bytes.NewReader(buf.Bytes()))
		got, err := ReadUnaryIncrement(r)
		if err != nil {
			t.Fatalf("ReadUnaryIncrement after %d: %v", inc, err)
		}
		if got != inc {
			t.Errorf("round trip inc=%d got %d", inc, got)
		}
	}
}

func TestCommaLengthRoundTrip(t *testing.T) {
	vals := []uint32{0, 1, 127, 128, 16383, 16384, 1 << 20, 1<<32 - 1}
	var buf bytes.Buffer
	w := NewCommaLengthWriter(&buf)
	for _, v := range vals {
		if err := w.WriteLength(v); err != nil {
			t.Fatalf("WriteLength(%d): %v", v, err)
		}
	}
	r := NewCommaLengthReader(bytes.NewReader(buf.Bytes()))
	for _, want := range vals {
		got, err := r.ReadLength()
		if err != nil {
			t.Fatalf("ReadLength: %v", err)
		}
		if got != want {
			t.Errorf("ReadLength = %d, want %d", got, want)
		}
	}
}
