package canvas

// CodeBlockStyle holds the code-block style flags of spec §3/§6: bypass,
// reset-context, termination-all, vertical-causal-context, predictable
// termination, segmentation-symbols, and the HT (Part 15) selector.
type CodeBlockStyle uint8

const (
	StyleBypass       CodeBlockStyle = 1 << iota // raw-coded passes after bitplane 4
	StyleResetContext                            // reset MQ contexts at each coding-pass boundary
	StyleTermAll                                 // terminate every coding pass (not just segment ends)
	StyleVertCausal                              // vertically causal context formation
	StylePredTerm                                // predictable termination
	StyleSegSymbols                              // segmentation symbols at end of cleanup pass
	StyleHT                                      // HT (Part 15) block coder selected
)

// Has reports whether flag is set.
func (s CodeBlockStyle) Has(flag CodeBlockStyle) bool { return s&flag != 0 }

// MCTMode selects the multi-component transform (spec §6).
type MCTMode int

const (
	MCTNone MCTMode = iota
	MCTReversible3
	MCTIrreversible3
	MCTCustom
)

// RateControlMode selects how layers are assigned byte budgets (spec §6).
type RateControlMode int

const (
	RateControlFixedQuality RateControlMode = iota
	RateControlFixedRatio
	RateControlLossless
)

// QuantStep is one subband's (expn, mant) quantization step, spec §3/§4.5.
type QuantStep struct {
	Expn uint8  // 5 bits
	Mant uint16 // 11 bits
}

// ProgressionRecord is one packet-order-change (POC) record: the iterator
// concatenates the packet sequences of successive records, spec §4.7.
type ProgressionRecord struct {
	LayerLo, LayerHi     int
	ResolutionLo, ResolutionHi int
	ComponentLo, ComponentHi   int
	Order                      ProgressionOrder
}

// ProgressionOrder names the nesting of the four packet-identity loops.
type ProgressionOrder int

const (
	LRCP ProgressionOrder = iota
	RLCP
	RPCL
	PCRL
	CPRL
)

func (p ProgressionOrder) String() string {
	switch p {
	case LRCP:
		return "LRCP"
	case RLCP:
		return "RLCP"
	case RPCL:
		return "RPCL"
	case PCRL:
		return "PCRL"
	case CPRL:
		return "CPRL"
	default:
		return "UNKNOWN"
	}
}

// CodingParams is the per-tile coding-parameter record of spec §3.
type CodingParams struct {
	Reversible bool // true: 5-3 wavelet, false: 9-7 wavelet

	NumDecompositions int // R, 0..32

	CodeBlockWidthExp, CodeBlockHeightExp int // 2..10, product <= 12
	CodeBlockStyle                        CodeBlockStyle

	// PrecinctWidthExp/HeightExp are indexed by resolution r (0..R); a
	// nil entry (or one with both exponents 15) means "whole resolution
	// is one precinct", the standard's default.
	PrecinctWidthExp, PrecinctHeightExp []int

	QuantSteps []QuantStep // indexed by subband in canonical order
	MCT        MCTMode
	NumLayers  int
	ROIShift   int

	Progression []ProgressionRecord
}

// PrecinctExp returns the (width, height) precinct exponent for
// resolution r, defaulting to 15 (whole-resolution precinct) when unset.
func (cp *CodingParams) PrecinctExp(r int) (pw, ph int) {
	pw, ph = 15, 15
	if r < len(cp.PrecinctWidthExp) {
		pw = cp.PrecinctWidthExp[r]
	}
	if r < len(cp.PrecinctHeightExp) {
		ph = cp.PrecinctHeightExp[r]
	}
	return pw, ph
}
