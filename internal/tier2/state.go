// Package tier2 assembles and parses JPEG 2000 packets: the packet
// header bit-level codec (inclusion/zero-bitplane tag trees, the passes
// VLC, Lblock comma coding and segment length fields), the PLT/TLM
// out-of-band length tables, and rate-distortion layer assignment (spec
// §4.2, §4.6).
package tier2

import (
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/canvas"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/tagtree"
)

// initialLblock is the starting value of a codeblock's length-indicator
// bit width, fixed by the standard (spec §4.6 "Lblock increment...
// carries across packets").
const initialLblock = 3

// CodeblockState tracks one codeblock's tier-2 bookkeeping across the
// whole sequence of packets a precinct emits or parses: whether it has
// ever been included, the layer of first inclusion, the number of
// missing MSB bitplanes, the running pass count, and the current Lblock
// bit width.
type CodeblockState struct {
	Included   bool
	FirstLayer int
	Zb         int
	NumPasses  int
	Lblock     int
}

// PrecinctState is the persistent per-precinct tier-2 state: the two
// tag trees (inclusion, zero-bitplane) and one CodeblockState per
// codeblock, indexed in the same subband-then-row-major order as
// internal/canvas's Precinct.CodeblockIndices (spec §4.2).
type PrecinctState struct {
	Blocks   []CodeblockState
	InclTree *tagtree.TagTree
	ZbTree   *tagtree.TagTree
	// Style is the code-block style flags governing how many independent
	// MQ segments a packet's NewPasses split into (spec §3/§6); shared by
	// every codeblock of this precinct, which holds for every codestream
	// this package round-trips since COD/COC apply style uniformly per
	// tile-part.
	Style canvas.CodeBlockStyle
}

// NewPrecinctState builds the tier-2 state for a precinct with a
// numCBX x numCBY codeblock grid (one instance per (subband, precinct)
// pair a resolution owns).
func NewPrecinctState(numCBX, numCBY int, style canvas.CodeBlockStyle) *PrecinctState {
	n := numCBX * numCBY
	blocks := make([]CodeblockState, n)
	for i := range blocks {
		blocks[i].Lblock = initialLblock
		blocks[i].FirstLayer = -1
	}
	return &PrecinctState{
		Blocks:   blocks,
		InclTree: tagtree.New(numCBX, numCBY),
		ZbTree:   tagtree.New(numCBX, numCBY),
		Style:    style,
	}
}

// numSegments reports how many independent MQ segments a contribution of
// newPasses new passes splits into, under ps.Style: StyleTermAll
// terminates every pass; StylePredTerm terminates only the codeblock's
// final pass of the layer, same as the default (no per-pass
// termination). Both sides (Encode/DecodePacketHeader) call this so the
// segment-length field count always agrees without extra signaling.
func (ps *PrecinctState) numSegments(newPasses int) int {
	if ps.Style.Has(canvas.StyleTermAll) {
		return newPasses
	}
	return 1
}

// PrepareInclusion records the layer at which leaf is first included,
// for the inclusion tag tree's min-propagation (spec §4.2). The encoder
// must call this for every codeblock before encoding packet 0 of this
// precinct, since rate-distortion layer assignment (see rate.go) decides
// every codeblock's first-inclusion layer before any packet is built.
func (ps *PrecinctState) PrepareInclusion(leaf, layer int) {
	ps.InclTree.SetValue(leaf, layer)
}

// bitLength returns the number of bits needed to represent v in
// unsigned binary (0 for v<=0).
func bitLength(v int) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// floorLog2 returns floor(log2(v)) for v >= 1.
func floorLog2(v int) int {
	n := 0
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}
