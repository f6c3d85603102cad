package jpeg2000

import (
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/canvas"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/dwt"
)

// subbandOrigin locates, within the in-place packed buffer
// internal/dwt's multi-level transforms leave behind, the absolute
// top-left corner of resolution r's orient subband for a numLevels-deep
// decomposition of a width x height tile-component.
//
// internal/canvas's Subband.Rect gives the correct width and height for
// the same subband but in its own near-origin coordinate frame (the
// standard's own Annex B addressing), because internal/dwt nests every
// decomposition level inside the previous level's LL quadrant of the
// SAME flat buffer rather than relocating each subband to a fresh
// region. Both are right about what they claim and wrong about what
// they don't: canvas never promises absolute buffer position, dwt never
// promises a subband's standard-relative rectangle. This bridges them by
// re-deriving the absolute quadrant with dwt.CalculateSubbands, walking
// down from the full tile-component size one LL quadrant at a time.
//
// Resolution 0 is the final, most-decomposed LL (coarsest); resolution
// numLevels is the finest detail level, matching internal/canvas's
// resolution numbering.
func subbandOrigin(width, height, numLevels, r int, orient canvas.Orientation) (x0, y0 int) {
	if numLevels == 0 {
		return 0, 0
	}
	level := decompLevel(numLevels, r)
	curW, curH := width, height
	for i := 0; i < level; i++ {
		ll, _, _, _ := dwt.CalculateSubbands(curW, curH, 0)
		curW, curH = ll.X1, ll.Y1
	}
	ll, hl, lh, hh := dwt.CalculateSubbands(curW, curH, 0)
	switch {
	case r == 0:
		return ll.X0, ll.Y0
	case orient == canvas.OrientHL:
		return hl.X0, hl.Y0
	case orient == canvas.OrientLH:
		return lh.X0, lh.Y0
	default:
		return hh.X0, hh.Y0
	}
}

// decompLevel converts internal/canvas's resolution index r (0 = coarsest
// LL, numLevels = finest detail) into the number of wavelet decomposition
// levels nested around the subband at that resolution, which is what
// dwt.CalculateSubbands and mct.SubbandNormGain key off of. Resolution 0
// shares the same nesting depth as resolution 1: both live numLevels-1
// quadrants deep, the LL and its companion HL/LH/HH siblings produced by
// the same final CalculateSubbands call.
func decompLevel(numLevels, r int) int {
	if r == 0 {
		return numLevels - 1
	}
	return numLevels - r
}

// extractRegion copies a w x h rectangle rooted at (x0,y0) out of buf, a
// flat row-major buffer of the given stride (the tile-component's full
// width, since internal/dwt transforms the whole component in place).
func extractRegion(buf []int32, stride, x0, y0, w, h int) []int32 {
	out := make([]int32, w*h)
	for y := 0; y < h; y++ {
		copy(out[y*w:(y+1)*w], buf[(y0+y)*stride+x0:(y0+y)*stride+x0+w])
	}
	return out
}

// writeRegion is extractRegion's inverse: it scatters a w x h block back
// into buf at (x0,y0).
func writeRegion(buf []int32, stride, x0, y0, w, h int, data []int32) {
	for y := 0; y < h; y++ {
		copy(buf[(y0+y)*stride+x0:(y0+y)*stride+x0+w], data[y*w:(y+1)*w])
	}
}

// extractRegionFloat64 is extractRegion's float64 counterpart, used for
// the irreversible (9-7) path where subband coefficients are quantized
// per-subband rather than carried as integers all the way through the
// transform.
func extractRegionFloat64(buf []float64, stride, x0, y0, w, h int) []float64 {
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		copy(out[y*w:(y+1)*w], buf[(y0+y)*stride+x0:(y0+y)*stride+x0+w])
	}
	return out
}

// writeRegionFloat64 is extractRegionFloat64's inverse.
func writeRegionFloat64(buf []float64, stride, x0, y0, w, h int, data []float64) {
	for y := 0; y < h; y++ {
		copy(buf[(y0+y)*stride+x0:(y0+y)*stride+x0+w], data[y*w:(y+1)*w])
	}
}

// nominalMaxBitplanes is the Mb bound tier-2's Zb (missing MSB
// bitplanes) signaling is computed against: Zb = Mb - numBPS.
//
// It deliberately does NOT come from mct.DeriveStepsize's analysis-gain
// exponent: that exponent only accounts for the wavelet norm, not the
// component's own bit depth, so it can be too small for real image data
// and drive Zb negative, which would corrupt lossless round-trips. Mb
// instead adds a generous, precision-and-level-derived margin that both
// encoder and decoder recompute identically from values the codestream
// header always carries (component precision, decomposition level),
// independent of the quantization path actually used. See DESIGN.md.
func nominalMaxBitplanes(precision, level int) int {
	return precision + level + 4
}

var orientationsForResolution = func(r int) []canvas.Orientation {
	if r == 0 {
		return []canvas.Orientation{canvas.OrientLL}
	}
	return []canvas.Orientation{canvas.OrientHL, canvas.OrientLH, canvas.OrientHH}
}
