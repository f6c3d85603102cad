package tier2

import (
	"sort"

	"github.com/mrjoshuak/go-jpeg2000/v2/internal/tier1"
)

// LayerPlan is one codeblock's contribution to one layer: how many new
// passes it admits and the byte length of each resulting MQ segment
// (spec §4.3 rate-distortion layering).
type LayerPlan struct {
	NewPasses      int
	SegmentLengths []int
}

// ChooseThresholds picks numLayers per-layer slope cutoffs from the
// tier-1 Pass records of every codeblock in a tile (spec §6 "rate-
// distortion slope used later by layer assignment"). It pools every
// codeblock's passes, sorts by descending slope, and splits the pooled
// list into numLayers equal-count bands — layer 0 gets the steepest
// (most valuable per byte) passes tile-wide, each later layer absorbs
// the next band. This is a deliberately simplified stand-in for full
// Lagrangian convex-hull optimization: since tier1.Pass.Slope is itself
// an ordinal proxy rather than a measured rate-distortion slope (see
// DESIGN.md), an equal-count split extracts as much signal from it as a
// more elaborate search would.
func ChooseThresholds(allPasses [][]tier1.Pass, numLayers int) []uint16 {
	if numLayers <= 0 {
		return nil
	}
	var slopes []uint16
	for _, passes := range allPasses {
		for _, p := range passes {
			slopes = append(slopes, p.Slope)
		}
	}
	if len(slopes) == 0 {
		return make([]uint16, numLayers)
	}
	sort.Slice(slopes, func(i, j int) bool { return slopes[i] > slopes[j] })

	thresholds := make([]uint16, numLayers)
	for layer := 0; layer < numLayers; layer++ {
		idx := (layer+1)*len(slopes)/numLayers - 1
		if idx < 0 {
			idx = 0
		}
		thresholds[layer] = slopes[idx]
	}
	return thresholds
}

// AssignLayers partitions one codeblock's already-encoded Pass records
// across len(thresholds) layers: a pass belongs to the first layer whose
// threshold its slope still meets. Each layer boundary snaps forward to
// the next Terminated pass so every layer's byte range is an
// independently decodable MQ segment (spec §4.3); if the block was
// encoded without StyleTermAll/StylePredTerm, no pass is Terminated
// before the final one, so the first non-empty layer absorbs the whole
// block — only per-pass-terminated code-blocks get genuine progressive
// layering from this function, a scope decision documented in
// DESIGN.md.
func AssignLayers(passes []tier1.Pass, thresholds []uint16) []LayerPlan {
	plans := make([]LayerPlan, len(thresholds))
	passIdx := 0
	prevRate := 0

	for layer, th := range thresholds {
		start := passIdx
		for passIdx < len(passes) && passes[passIdx].Slope >= th {
			passIdx++
		}
		for passIdx > start && passIdx < len(passes) && !passes[passIdx-1].Terminated {
			passIdx++
		}
		if passIdx == start {
			continue
		}
		endRate := passes[passIdx-1].RateBytes
		plans[layer] = LayerPlan{
			NewPasses:      passIdx - start,
			SegmentLengths: []int{endRate - prevRate},
		}
		prevRate = endRate
	}
	return plans
}
