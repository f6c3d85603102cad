// Package tagtree implements the quad-tree-of-minimums structure used by
// tier-2 to signal, per precinct, codeblock inclusion and the number of
// missing most-significant bitplanes (spec §4.2). Each precinct owns two
// trees: an inclusion tree (leaf value = packet index of first inclusion)
// and a zero-bitplane tree (leaf value = count of missing MSBs, up to 74).
package tagtree

import "github.com/mrjoshuak/go-jpeg2000/v2/internal/bitio"

// infinity stands in for "not yet known" the way the reference algorithm
// uses a sentinel larger than any real value ever assigned to a leaf.
const infinity = 1 << 30

type node struct {
	parent *node
	value  int
	low    int
	known  bool
}

// TagTree is a 2D pyramid of nodes: level 0 holds one node per leaf
// (codeblock), and each level above halves both dimensions until a single
// root node remains. Parent-child edges are real pointers, not a flat
// per-leaf array, so internal nodes are genuinely shared ancestors.
type TagTree struct {
	width, height int
	levels        [][]node // levels[0] = leaves, last level = root (len 1)
}

// New builds a tag tree with width*height leaves.
func New(width, height int) *TagTree {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	t := &TagTree{width: width, height: height}
	w, h := width, height
	var widths, heights []int
	for {
		widths = append(widths, w)
		heights = append(heights, h)
		if w == 1 && h == 1 {
			break
		}
		w = (w + 1) / 2
		h = (h + 1) / 2
	}
	t.levels = make([][]node, len(widths))
	for l, lw := range widths {
		t.levels[l] = make([]node, lw*heights[l])
	}
	for l := 0; l < len(t.levels)-1; l++ {
		lw := widths[l]
		plw := widths[l+1]
		for j := 0; j < heights[l]; j++ {
			for i := 0; i < lw; i++ {
				pi, pj := i/2, j/2
				t.levels[l][j*lw+i].parent = &t.levels[l+1][pj*plw+pi]
			}
		}
	}
	t.Reset()
	return t
}

// Reset clears all node state, as happens when a precinct is reset.
func (t *TagTree) Reset() {
	for _, level := range t.levels {
		for i := range level {
			level[i] = node{parent: level[i].parent, value: infinity}
		}
	}
}

// NumLeaves returns the number of leaves (codeblocks) the tree covers.
func (t *TagTree) NumLeaves() int { return t.width * t.height }

// SetValue assigns the true value of a leaf (encoder side, where the
// value is known up front) and propagates the minimum up the ancestor
// chain, matching the reference min-propagation rule.
func (t *TagTree) SetValue(leaf, value int) {
	n := &t.levels[0][leaf]
	for n != nil && n.value > value {
		n.value = value
		n = n.parent
	}
}

// chain returns the leaf's ancestors in leaf-to-root order.
func (t *TagTree) chain(leaf int) []*node {
	chain := make([]*node, 0, len(t.levels))
	n := &t.levels[0][leaf]
	for n != nil {
		chain = append(chain, n)
		n = n.parent
	}
	return chain
}

// Encode signals, via w, whether leaf's true value is known to be below
// threshold, walking root-to-leaf and writing a 0-bit for every step the
// running lower bound advances without yet reaching the node's value, and
// a terminating 1-bit once it has (spec §4.2).
func (t *TagTree) Encode(w *bitio.Writer, leaf, threshold int) error {
	chain := t.chain(leaf)
	low := 0
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		if low > n.low {
			n.low = low
		} else {
			low = n.low
		}
		for low < threshold {
			if low >= n.value {
				if !n.known {
					if err := w.WriteBit(1); err != nil {
						return err
					}
					n.known = true
				}
				break
			}
			if err := w.WriteBit(0); err != nil {
				return err
			}
			low++
		}
		n.low = low
	}
	return nil
}

// Decode is Encode's dual: it consumes bits from r and reports whether
// leaf's value is now known to be strictly below threshold. Repeated
// calls with increasing thresholds converge on the leaf's exact value
// (used for the zero-bitplane tree, whose value is only bounded, never
// preset, on the decode side).
func (t *TagTree) Decode(r *bitio.Reader, leaf, threshold int) (bool, error) {
	chain := t.chain(leaf)
	low := 0
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		if low > n.low {
			n.low = low
		} else {
			low = n.low
		}
		for low < threshold && low < n.value {
			bit, err := r.ReadBit()
			if err != nil {
				return false, err
			}
			if bit == 1 {
				n.value = low
			} else {
				low++
			}
		}
		n.low = low
	}
	return chain[0].value < threshold, nil
}

// Value returns the leaf's currently known value (its exact value once
// set or fully decoded, or the internal "not yet known" sentinel
// otherwise).
func (t *TagTree) Value(leaf int) int {
	return t.levels[0][leaf].value
}
