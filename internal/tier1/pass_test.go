package tier1

import (
	"testing"

	"github.com/mrjoshuak/go-jpeg2000/v2/internal/canvas"
)

func TestEncodeWithStyle_PlainRoundtrip(t *testing.T) {
	data := []int32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}

	enc := NewT1(4, 4)
	enc.SetData(data)
	stream, passes := enc.EncodeWithStyle(BandLL, 0)
	if len(passes) == 0 {
		t.Fatal("expected at least one pass")
	}
	if !passes[len(passes)-1].Terminated {
		t.Error("final pass must be marked terminated: the bitstream was flushed")
	}
	for i := 1; i < len(passes); i++ {
		if passes[i].RateBytes < passes[i-1].RateBytes {
			t.Errorf("pass %d rate %d < pass %d rate %d: rate must be non-decreasing",
				i, passes[i].RateBytes, i-1, passes[i-1].RateBytes)
		}
		if passes[i].Slope > passes[i-1].Slope {
			t.Errorf("pass %d slope %d > pass %d slope %d: slope must be non-increasing",
				i, passes[i].Slope, i-1, passes[i-1].Slope)
		}
	}

	dec := NewT1(4, 4)
	decoded := dec.DecodeSegments([]Segment{{Data: stream, NumPasses: len(passes)}}, enc.numBPS, BandLL)
	for i := range data {
		if decoded[i] != data[i] {
			t.Errorf("position %d: got %d, want %d", i, decoded[i], data[i])
		}
	}
}

func TestEncodeWithStyle_TermAllProducesIndependentSegments(t *testing.T) {
	data := []int32{
		-1, 2, -3, 4,
		5, -6, 7, -8,
		-9, 10, -11, 12,
		13, -14, 15, -16,
	}

	enc := NewT1(4, 4)
	enc.SetData(data)
	stream, passes := enc.EncodeWithStyle(BandHL, canvas.StyleTermAll|canvas.StyleResetContext)
	for i, p := range passes {
		if !p.Terminated {
			t.Errorf("pass %d not terminated under StyleTermAll", i)
		}
	}

	segs := make([]Segment, 0, len(passes))
	off := 0
	for _, p := range passes {
		segs = append(segs, Segment{Data: stream[off:p.RateBytes], NumPasses: 1})
		off = p.RateBytes
	}

	dec := NewT1(4, 4)
	decoded := dec.DecodeSegments(segs, enc.numBPS, BandHL)
	for i := range data {
		if decoded[i] != data[i] {
			t.Errorf("position %d: got %d, want %d", i, decoded[i], data[i])
		}
	}
}

func TestEncodeWithStyle_AllZeroReturnsNoPasses(t *testing.T) {
	enc := NewT1(4, 4)
	enc.SetData(make([]int32, 16))
	stream, passes := enc.EncodeWithStyle(BandLL, 0)
	if stream != nil || passes != nil {
		t.Error("all-zero block should produce no bitstream and no passes")
	}
}
