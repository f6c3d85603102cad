package mct

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/mrjoshuak/go-jpeg2000/v2/internal/canvas"
)

// Clamp restricts v to [lo, hi], generic over any ordered numeric type
// (spec §4.5's reversible/irreversible paths share this across int32 and
// float64 sample buffers). Superseded by ClampFloat64/ClampInt32 for the
// two call sites the teacher's kernels hard-coded; new per-subband
// quantization code below uses this generic form instead of adding a
// third hand-written variant.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DeriveStepsize computes a subband's quantization (expn, mant) pair from
// its analysis gain and the wavelet norm of its orientation (spec §4.5).
//
// Reversible (5-3) subbands are lossless: mant is always 0 and expn is the
// number of extra integer bits the subband's norm·gain can contribute,
// ceil(log2(normGain)), floored at 0 since a subband can never need fewer
// bits than its own samples. Irreversible (9-7) subbands carry a real
// stepsize, derived the same way the standard's expounded-quantization
// scheme does: expn is the exponent of the largest power of two not
// exceeding the target stepsize, and mant is the 11-bit mantissa of the
// remaining ratio.
func DeriveStepsize(normGain float64, reversible bool, guardBits int) canvas.QuantStep {
	if reversible {
		expn := int(math.Ceil(math.Log2(normGain)))
		if expn < 0 {
			expn = 0
		}
		return canvas.QuantStep{Expn: uint8(expn + guardBits), Mant: 0}
	}

	stepsize := 1.0 / normGain
	if stepsize <= 0 {
		return canvas.QuantStep{Expn: 0, Mant: 0}
	}
	expn := int(math.Floor(math.Log2(stepsize)))
	mant := (stepsize/math.Pow(2, float64(expn)) - 1.0) * 2048.0
	m := int(math.Round(mant))
	m = Clamp(m, 0, 2047)
	e := Clamp(expn+guardBits, 0, 31)
	return canvas.QuantStep{Expn: uint8(e), Mant: uint16(m)}
}

// SubbandNormGain returns the L2 wavelet norm for a subband at
// decomposition level relative to the coarsest resolution, for filter
// either "5-3" or "9-7" (spec §4.5 "derived norms used for rate
// control"). The value is a per-orientation base gain (1.0 for every
// orientation of the 5-3 filter; 1.1 for HL/LH and 1.0 for LL/HH of the
// 9-7 filter) multiplied by 2^level, so each decomposition level doubles
// the norm for every orientation.
func SubbandNormGain(level int, orient canvas.Orientation, reversible bool) float64 {
	baseLL, baseHL, baseLH, baseHH := 1.0, 1.0, 1.0, 1.0
	if !reversible {
		baseLL, baseHL, baseLH, baseHH = 1.0, 1.1, 1.1, 1.0
	}
	var base float64
	switch orient {
	case canvas.OrientLL:
		base = baseLL
	case canvas.OrientHL:
		base = baseHL
	case canvas.OrientLH:
		base = baseLH
	default:
		base = baseHH
	}
	return base * math.Pow(2, float64(level))
}

// Dequantize reconstructs a subband's coefficients from its quantized
// integer values using step (spec §4.5 inverse path); reversible
// subbands are passed through unchanged since their stepsize is exact.
func Dequantize(data []int32, out []float64, step canvas.QuantStep, reversible bool) {
	if reversible {
		for i, v := range data {
			out[i] = float64(v)
		}
		return
	}
	delta := (1.0 + float64(step.Mant)/2048.0) * math.Pow(2, float64(step.Expn))
	for i, v := range data {
		out[i] = float64(v) * delta
	}
}

// Quantize maps reconstructed-domain coefficients down to the integer
// values tier-1 codes, the forward dual of Dequantize.
func Quantize(data []float64, out []int32, step canvas.QuantStep, reversible bool) {
	if reversible {
		for i, v := range data {
			out[i] = int32(math.Round(v))
		}
		return
	}
	delta := (1.0 + float64(step.Mant)/2048.0) * math.Pow(2, float64(step.Expn))
	for i, v := range data {
		out[i] = int32(math.Round(v / delta))
	}
}
