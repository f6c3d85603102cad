package tier2

import (
	"bytes"
	"fmt"

	"github.com/mrjoshuak/go-jpeg2000/v2/internal/bitio"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/tagtree"
)

// BlockContribution is one codeblock's contribution to a single packet:
// zero or more new coding passes, the compressed bytes for them, and
// (when StyleTermAll/StylePredTerm produced intermediate terminations)
// the byte length of each termination event, per spec §4.6 item 5.
// A nil SegmentLengths means the contribution is a single segment
// covering all of Data, the common case when only the final pass of a
// layer is terminated.
type BlockContribution struct {
	Index          int
	NewPasses      int
	Zb             int // meaningful only on first inclusion
	Data           []byte
	SegmentLengths []int
}

// ParsedBlock is DecodePacketHeader's result for one codeblock: how many
// new passes this packet contributes and in what segment lengths, so the
// caller can slice the matching bytes out of the packet body that
// follows the header.
type ParsedBlock struct {
	Index          int
	Included       bool
	FirstInclusion bool
	Zb             int
	NewPasses      int
	SegmentLengths []int
}

// segmentsOf returns c's segment lengths, defaulting to a single segment
// spanning all of Data.
func (c BlockContribution) segmentsOf() []int {
	if len(c.SegmentLengths) > 0 {
		return c.SegmentLengths
	}
	if len(c.Data) > 0 {
		return []int{len(c.Data)}
	}
	return nil
}

// passesPerSegment splits total passes evenly across n segments, the
// final segment absorbing any remainder; real encoders place
// terminations at specific pass boundaries, but since EncodeWithStyle's
// Terminated markers already tell the caller exactly where those
// boundaries are, callers typically pass exactly one segment (len(segs)
// == 1) and this split is a no-op.
func passesPerSegment(total, n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	base := total / n
	rem := total % n
	for i := range out {
		out[i] = base
		if i == n-1 {
			out[i] += rem
		}
	}
	return out
}

// EncodePacketHeader builds one packet header (spec §4.6): the presence
// bit, then per-codeblock inclusion/zero-bitplane/passes/Lblock/segment-
// length fields, in precinct order (index 0..len(ps.Blocks)-1, which the
// caller must have built in subband-then-row-major order to match
// internal/canvas). contributions need not cover every codeblock: blocks
// absent or with NewPasses==0 are treated as "not included this layer".
func EncodePacketHeader(ps *PrecinctState, layer int, contributions []BlockContribution) ([]byte, error) {
	byIndex := make(map[int]BlockContribution, len(contributions))
	for _, c := range contributions {
		byIndex[c.Index] = c
	}

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)

	nonEmpty := false
	for _, c := range contributions {
		if c.NewPasses > 0 {
			nonEmpty = true
			break
		}
	}
	if err := w.WriteBit(boolBit(nonEmpty)); err != nil {
		return nil, err
	}
	if !nonEmpty {
		if err := w.Flush(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	for idx := range ps.Blocks {
		st := &ps.Blocks[idx]
		c, has := byIndex[idx]
		included := has && c.NewPasses > 0

		if !st.Included {
			if err := ps.InclTree.Encode(w, idx, layer+1); err != nil {
				return nil, fmt.Errorf("tier2: encode inclusion for block %d: %w", idx, err)
			}
			wasIncluded := ps.InclTree.Value(idx) < layer+1
			if wasIncluded != included {
				return nil, fmt.Errorf("tier2: block %d inclusion mismatch with prepared layer assignment", idx)
			}
			if included {
				st.Included = true
				st.FirstLayer = layer
				if err := encodeZeroBitplanes(w, ps.ZbTree, idx, c.Zb); err != nil {
					return nil, err
				}
				st.Zb = c.Zb
			}
		} else if included {
			if err := w.WriteBit(1); err != nil {
				return nil, err
			}
		} else {
			if err := w.WriteBit(0); err != nil {
				return nil, err
			}
		}

		if !included {
			continue
		}

		if err := bitio.WriteNumPasses(w, c.NewPasses); err != nil {
			return nil, fmt.Errorf("tier2: block %d passes VLC: %w", idx, err)
		}

		segs := c.segmentsOf()
		if want := ps.numSegments(c.NewPasses); len(segs) != want {
			return nil, fmt.Errorf("tier2: block %d contributed %d segments, style requires %d", idx, len(segs), want)
		}
		passCounts := passesPerSegment(c.NewPasses, len(segs))

		requiredLblock := 0
		for i := range segs {
			need := bitLength(segs[i]) - floorLog2(max1(passCounts[i]))
			if need > requiredLblock {
				requiredLblock = need
			}
		}
		increment := 0
		if requiredLblock > st.Lblock {
			increment = requiredLblock - st.Lblock
		}
		if err := bitio.WriteUnaryIncrement(w, increment); err != nil {
			return nil, fmt.Errorf("tier2: block %d Lblock increment: %w", idx, err)
		}
		st.Lblock += increment

		for i, seg := range segs {
			width := uint(st.Lblock + floorLog2(max1(passCounts[i])))
			if err := w.WriteBits(uint32(seg), width); err != nil {
				return nil, fmt.Errorf("tier2: block %d segment %d length: %w", idx, i, err)
			}
		}
		st.NumPasses += c.NewPasses
	}

	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeZeroBitplanes encodes leaf's zero-bitplane count in one shot: the
// value is already known at encode time (unlike the decode side, which
// must probe with increasing thresholds), so a single Encode call at
// threshold = value+1 emits exactly the bits needed to pin it down
// (spec §4.6 item 2).
func encodeZeroBitplanes(w *bitio.Writer, zb *tagtree.TagTree, leaf, value int) error {
	zb.SetValue(leaf, value)
	return zb.Encode(w, leaf, value+1)
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// DecodePacketHeader parses one packet header out of r (spec §4.6). numCB
// is the precinct's total codeblock count (len(ps.Blocks)). It mirrors
// EncodePacketHeader's field order exactly, resolving the zero-bitplane
// count by probing the tag tree at increasing thresholds since the
// decoder does not know it ahead of time.
func DecodePacketHeader(r *bitio.Reader, ps *PrecinctState, layer int) ([]ParsedBlock, error) {
	presentBit, err := r.ReadBit()
	if err != nil {
		return nil, fmt.Errorf("tier2: read packet presence bit: %w", err)
	}
	if presentBit == 0 {
		return nil, nil
	}

	blocks := make([]ParsedBlock, 0, len(ps.Blocks))
	for idx := range ps.Blocks {
		st := &ps.Blocks[idx]
		pb := ParsedBlock{Index: idx}

		if !st.Included {
			known, err := ps.InclTree.Decode(r, idx, layer+1)
			if err != nil {
				return nil, fmt.Errorf("tier2: decode inclusion for block %d: %w", idx, err)
			}
			if known {
				st.Included = true
				st.FirstLayer = layer
				pb.Included = true
				pb.FirstInclusion = true
				zb, err := decodeZeroBitplanes(r, ps.ZbTree, idx)
				if err != nil {
					return nil, err
				}
				st.Zb = zb
				pb.Zb = zb
			}
		} else {
			bit, err := r.ReadBit()
			if err != nil {
				return nil, fmt.Errorf("tier2: read repeat-inclusion bit for block %d: %w", idx, err)
			}
			pb.Included = bit == 1
		}

		if !pb.Included {
			blocks = append(blocks, pb)
			continue
		}

		newPasses, err := bitio.ReadNumPasses(r)
		if err != nil {
			return nil, fmt.Errorf("tier2: block %d passes VLC: %w", idx, err)
		}
		pb.NewPasses = newPasses

		increment, err := bitio.ReadUnaryIncrement(r)
		if err != nil {
			return nil, fmt.Errorf("tier2: block %d Lblock increment: %w", idx, err)
		}
		st.Lblock += increment

		numSegments := ps.numSegments(newPasses)
		passCounts := passesPerSegment(newPasses, numSegments)
		pb.SegmentLengths = make([]int, numSegments)
		for i := 0; i < numSegments; i++ {
			width := uint(st.Lblock + floorLog2(max1(passCounts[i])))
			seg, err := r.ReadBits(width)
			if err != nil {
				return nil, fmt.Errorf("tier2: block %d segment %d length: %w", idx, i, err)
			}
			pb.SegmentLengths[i] = int(seg)
		}
		st.NumPasses += newPasses
		blocks = append(blocks, pb)
	}
	return blocks, nil
}

// decodeZeroBitplanes drives the zero-bitplane tag tree at increasing
// thresholds until leaf's value is pinned down, then returns it.
func decodeZeroBitplanes(r *bitio.Reader, zb *tagtree.TagTree, leaf int) (int, error) {
	for threshold := 1; ; threshold++ {
		known, err := zb.Decode(r, leaf, threshold)
		if err != nil {
			return 0, fmt.Errorf("tier2: decode zero-bitplane count for block %d: %w", leaf, err)
		}
		if known {
			return zb.Value(leaf), nil
		}
	}
}

