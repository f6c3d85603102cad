// Package piter implements the five packet progression orders (spec
// §4.6/§4.7: LRCP, RLCP, RPCL, PCRL, CPRL) as a restartable pull
// iterator over a built tile's canvas tree.
package piter

import (
	"sort"

	"github.com/mrjoshuak/go-jpeg2000/v2/internal/canvas"
)

// PacketID identifies one (layer, resolution, component, precinct)
// packet within a tile (spec §4.6).
type PacketID struct {
	Layer, Resolution, Component, Precinct int
}

// Iterator yields PacketID values in the order a canvas.ProgressionRecord
// requires. It is restartable: Restart rewinds to the first packet
// without recomputing the tile's position tables, since a tile can carry
// several progression-order records back to back (spec §4.7) and a
// caller may need to replay one.
type Iterator struct {
	ids []PacketID
	pos int
}

// Next returns the next packet in progression order, or ok=false once
// exhausted.
func (it *Iterator) Next() (PacketID, bool) {
	if it.pos >= len(it.ids) {
		return PacketID{}, false
	}
	id := it.ids[it.pos]
	it.pos++
	return id, true
}

// Restart rewinds the iterator to its first packet.
func (it *Iterator) Restart() { it.pos = 0 }

// Len reports the total number of packets this iterator will yield.
func (it *Iterator) Len() int { return len(it.ids) }

// posKey is a precinct's origin projected to the tile's full
// (zero-decomposition) resolution, so precincts belonging to different
// resolutions and components become directly comparable for the
// position-progressive orders (RPCL, PCRL, CPRL).
type posKey struct{ X, Y int }

type entry struct {
	comp, res, prec int
	pos             posKey
}

// New builds a packet iterator over tile restricted to rec's
// layer/resolution/component bounds (a progression-order change, spec
// §4.7, scopes a sub-range of each axis). Precinct position keys project
// each precinct's rectangle origin up to the tile's full-resolution
// coordinate frame via the component's subsampling factors, the same
// projection `_examples/cocosip-go-dicom-codec`'s packet_progression.go
// performs from raw component bounds — simplified here because
// internal/canvas already hands us built precinct rects instead of
// requiring bounds to be re-derived from scratch.
func New(tile *canvas.Tile, numLayers int, rec canvas.ProgressionRecord) *Iterator {
	var entries []entry
	byPos := make(map[posKey][]entry)

	for ci, tc := range tile.Components {
		if ci < rec.ComponentLo || ci >= rec.ComponentHi {
			continue
		}
		R := len(tc.Resolutions) - 1
		for ri, res := range tc.Resolutions {
			if ri < rec.ResolutionLo || ri >= rec.ResolutionHi {
				continue
			}
			levelsRemaining := R - ri
			scaleX := tc.DX << uint(levelsRemaining)
			scaleY := tc.DY << uint(levelsRemaining)
			for pi, prec := range res.Precincts {
				e := entry{
					comp: ci, res: ri, prec: pi,
					pos: posKey{X: prec.Rect.X0 * scaleX, Y: prec.Rect.Y0 * scaleY},
				}
				entries = append(entries, e)
				byPos[e.pos] = append(byPos[e.pos], e)
			}
		}
	}

	layerLo, layerHi := rec.LayerLo, rec.LayerHi
	if layerHi <= layerLo {
		layerHi = numLayers
	}

	var ids []PacketID
	emit := func(e entry) {
		for l := layerLo; l < layerHi; l++ {
			ids = append(ids, PacketID{Layer: l, Resolution: e.res, Component: e.comp, Precinct: e.prec})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].res != entries[j].res {
			return entries[i].res < entries[j].res
		}
		if entries[i].comp != entries[j].comp {
			return entries[i].comp < entries[j].comp
		}
		return entries[i].prec < entries[j].prec
	})

	switch rec.Order {
	case canvas.LRCP:
		for l := layerLo; l < layerHi; l++ {
			for _, e := range entries {
				ids = append(ids, PacketID{Layer: l, Resolution: e.res, Component: e.comp, Precinct: e.prec})
			}
		}
	case canvas.RLCP:
		resList := distinctSorted(entries, func(e entry) int { return e.res })
		for _, res := range resList {
			for l := layerLo; l < layerHi; l++ {
				for _, e := range entries {
					if e.res == res {
						ids = append(ids, PacketID{Layer: l, Resolution: e.res, Component: e.comp, Precinct: e.prec})
					}
				}
			}
		}
	case canvas.RPCL:
		positions := sortedPositions(byPos)
		resList := distinctSorted(entries, func(e entry) int { return e.res })
		for _, res := range resList {
			for _, p := range positions {
				for _, e := range byPos[p] {
					if e.res == res {
						emit(e)
					}
				}
			}
		}
	case canvas.PCRL:
		positions := sortedPositions(byPos)
		for _, p := range positions {
			group := append([]entry(nil), byPos[p]...)
			sort.Slice(group, func(i, j int) bool {
				if group[i].comp != group[j].comp {
					return group[i].comp < group[j].comp
				}
				return group[i].res < group[j].res
			})
			for _, e := range group {
				emit(e)
			}
		}
	case canvas.CPRL:
		compList := distinctSorted(entries, func(e entry) int { return e.comp })
		for _, comp := range compList {
			var group []entry
			for _, e := range entries {
				if e.comp == comp {
					group = append(group, e)
				}
			}
			sort.Slice(group, func(i, j int) bool {
				pi, pj := group[i].pos, group[j].pos
				if pi.Y != pj.Y {
					return pi.Y < pj.Y
				}
				if pi.X != pj.X {
					return pi.X < pj.X
				}
				return group[i].res < group[j].res
			})
			for _, e := range group {
				emit(e)
			}
		}
	}

	return &Iterator{ids: ids}
}

// sortedPositions returns every distinct posKey in byPos ordered row-major
// (Y then X), matching the teacher-adjacent reference's sortedPositions.
func sortedPositions(byPos map[posKey][]entry) []posKey {
	positions := make([]posKey, 0, len(byPos))
	for p := range byPos {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Y != positions[j].Y {
			return positions[i].Y < positions[j].Y
		}
		return positions[i].X < positions[j].X
	})
	return positions
}

// distinctSorted returns the sorted set of distinct key(e) values across
// entries.
func distinctSorted(entries []entry, key func(entry) int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, e := range entries {
		k := key(e)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}
