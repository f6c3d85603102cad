package canvas

import "fmt"

// ErrSparseBufferOverrun is returned when a codeblock index computation
// would overrun the sparse cache's addressable range (spec §7
// SparseBufferOverrun).
type ErrSparseBufferOverrun struct {
	Index, Limit int
}

func (e *ErrSparseBufferOverrun) Error() string {
	return fmt.Sprintf("canvas: sparse buffer overrun: index %d >= limit %d", e.Index, e.Limit)
}

// partitionCells partitions bounds into non-empty cells of size
// cellW x cellH anchored at absolute-origin multiples of the cell size,
// clipped to bounds (spec §3 precinct/codeblock grids).
func partitionCells(bounds Rect, cellW, cellH int) []Rect {
	if bounds.IsEmpty() {
		return nil
	}
	gx0, gx1 := floorDivInt(bounds.X0, cellW), ceilDiv(bounds.X1, cellW)
	gy0, gy1 := floorDivInt(bounds.Y0, cellH), ceilDiv(bounds.Y1, cellH)
	cells := make([]Rect, 0, (gx1-gx0)*(gy1-gy0))
	for gy := gy0; gy < gy1; gy++ {
		for gx := gx0; gx < gx1; gx++ {
			cell := Rect{gx * cellW, gy * cellH, (gx + 1) * cellW, (gy + 1) * cellH}.Intersect(bounds)
			if !cell.IsEmpty() {
				cells = append(cells, cell)
			}
		}
	}
	return cells
}

func floorDivInt(a, b int) int {
	if a >= 0 {
		return a / b
	}
	return -((-a + b - 1) / b)
}

// Codeblock is the atomic unit tier-1 operates on (spec §3).
type Codeblock struct {
	Rect       Rect
	Index      int // index within its precinct's subband, subband-then-row-major
	NumPasses  int // total coding passes ever added across the block's life
	Zb         int // number of missing MSB bitplanes
	IncludedAt int // packet index of first inclusion, -1 if never included
}

// Subband is one orientation within a resolution, owning a grid of
// codeblocks partitioned by precinct then by codeblock size.
type Subband struct {
	Orient Orientation
	Rect   Rect
	// Codeblocks is a chunked sparse cache keyed by a flattened grid
	// index so sub-window decode only allocates the codeblocks actually
	// traversed (spec §4.4).
	cblkW, cblkH int
	gridW, gridH int
	blocks       map[int]*Codeblock
}

func newSubband(rect Rect, orient Orientation, cblkW, cblkH int) *Subband {
	gridW := 0
	gridH := 0
	if !rect.IsEmpty() {
		gridW = ceilDiv(rect.X1, cblkW) - floorDivInt(rect.X0, cblkW)
		gridH = ceilDiv(rect.Y1, cblkH) - floorDivInt(rect.Y0, cblkH)
	}
	return &Subband{
		Orient: orient, Rect: rect, cblkW: cblkW, cblkH: cblkH,
		gridW: gridW, gridH: gridH, blocks: make(map[int]*Codeblock),
	}
}

// NumCodeblocks returns the number of codeblocks in this subband (the
// full grid, independent of precinct partitioning).
func (s *Subband) NumCodeblocks() int { return s.gridW * s.gridH }

// GridDims returns the codeblock grid's width and height separately,
// which tier-2's per-precinct tag trees need (NumCodeblocks only gives
// the product).
func (s *Subband) GridDims() (w, h int) { return s.gridW, s.gridH }

// Codeblock lazily constructs and returns the codeblock at flat grid
// index idx (row-major), allocating it on first access.
func (s *Subband) Codeblock(idx int) (*Codeblock, error) {
	if idx < 0 || idx >= s.gridW*s.gridH {
		return nil, &ErrSparseBufferOverrun{Index: idx, Limit: s.gridW * s.gridH}
	}
	if cb, ok := s.blocks[idx]; ok {
		return cb, nil
	}
	gx, gy := idx%s.gridW, idx/s.gridW
	x0 := floorDivInt(s.Rect.X0, s.cblkW) + gx
	y0 := floorDivInt(s.Rect.Y0, s.cblkH) + gy
	rect := Rect{x0 * s.cblkW, y0 * s.cblkH, (x0 + 1) * s.cblkW, (y0 + 1) * s.cblkH}.Intersect(s.Rect)
	cb := &Codeblock{Rect: rect, Index: idx, IncludedAt: -1}
	s.blocks[idx] = cb
	return cb, nil
}

// Precinct groups the codeblocks of each subband that fall within one
// spatial cell of the resolution's precinct grid (spec §3 "Precinct").
type Precinct struct {
	Rect Rect
	// CodeblockIndices[subband-orientation] lists the flat Subband grid
	// indices owned by this precinct, in row-major order.
	CodeblockIndices map[Orientation][]int
}

// Resolution is one level of the wavelet pyramid within a tile-component.
type Resolution struct {
	Index     int
	Rect      Rect
	Subbands  map[Orientation]*Subband
	Precincts []Precinct
}

// TileComponent is one component's data within one tile.
type TileComponent struct {
	Rect        Rect
	DX, DY      int
	Resolutions []*Resolution
}

// Tile is the top-level unit of the canvas tree (spec §3 Lifecycle): it
// owns its components, which own resolutions, subbands, precincts and
// codeblocks, strictly tree-shaped — any cross-reference back up the
// chain is a lookup by explicit index, never a stored pointer.
type Tile struct {
	Index      int
	Rect       Rect
	Components []*TileComponent
}

// ComponentGeometry is the per-component input to BuildTile: its sample
// grid rectangle and subsampling factors.
type ComponentGeometry struct {
	Grid   Rect
	DX, DY int
}

// BuildTile constructs the full tile -> tile-component -> resolution ->
// subband -> precinct tree for tile (tx,ty) lazily with respect to
// codeblocks (built on first access via Subband.Codeblock), per spec
// §4.4. CP is shared by all components; per-component CP overrides (COC)
// are applied by the caller before calling BuildTile per component if
// needed, by passing distinct CPs per index via BuildTileComponent.
func BuildTile(image Rect, originX, originY, tileW, tileH, tx, ty, index int, components []ComponentGeometry, cp *CodingParams) *Tile {
	tileRect := TileRect(image, originX, originY, tileW, tileH, tx, ty)
	t := &Tile{Index: index, Rect: tileRect}
	for _, comp := range components {
		t.Components = append(t.Components, BuildTileComponent(tileRect, comp, cp))
	}
	return t
}

// BuildTileComponent constructs one component's resolution/subband/
// precinct tree within an already-clipped tile rectangle.
func BuildTileComponent(tileRect Rect, comp ComponentGeometry, cp *CodingParams) *TileComponent {
	tcRect := TileComponentRect(tileRect, comp.Grid, comp.DX, comp.DY)
	tcp := &TileComponent{Rect: tcRect, DX: comp.DX, DY: comp.DY}
	R := cp.NumDecompositions
	cblkW := 1 << uint(cp.CodeBlockWidthExp)
	cblkH := 1 << uint(cp.CodeBlockHeightExp)

	for r := 0; r <= R; r++ {
		resRect := ResolutionRect(tcRect, R, r)
		res := &Resolution{Index: r, Rect: resRect, Subbands: make(map[Orientation]*Subband)}

		orients := []Orientation{OrientLL}
		if r > 0 {
			orients = []Orientation{OrientHL, OrientLH, OrientHH}
		}
		for _, o := range orients {
			sbRect := resRect
			if r > 0 {
				sbRect = SubbandRect(tcRect, R, r, o)
			}
			res.Subbands[o] = newSubband(sbRect, o, cblkW, cblkH)
		}

		ppw, pph := cp.PrecinctExp(r)
		precCellW, precCellH := 1<<uint(ppw), 1<<uint(pph)
		precRects := partitionCells(resRect, precCellW, precCellH)
		res.Precincts = make([]Precinct, len(precRects))
		for i, pr := range precRects {
			prec := Precinct{Rect: pr, CodeblockIndices: make(map[Orientation][]int)}
			for _, o := range orients {
				sb := res.Subbands[o]
				prec.CodeblockIndices[o] = subbandBlockIndices(sb, pr)
			}
			res.Precincts[i] = prec
		}
		tcp.Resolutions = append(tcp.Resolutions, res)
	}
	return tcp
}

// subbandBlockIndices lists the flat grid indices of sb's codeblocks
// whose rectangle intersects precinctRect, in row-major order (spec §3:
// "Tag-tree leaf count equals the codeblock count of its precinct").
func subbandBlockIndices(sb *Subband, precinctRect Rect) []int {
	overlap := sb.Rect.Intersect(precinctRect)
	if overlap.IsEmpty() || sb.gridW == 0 {
		return nil
	}
	gx0 := floorDivInt(overlap.X0, sb.cblkW) - floorDivInt(sb.Rect.X0, sb.cblkW)
	gx1 := ceilDiv(overlap.X1, sb.cblkW) - floorDivInt(sb.Rect.X0, sb.cblkW)
	gy0 := floorDivInt(overlap.Y0, sb.cblkH) - floorDivInt(sb.Rect.Y0, sb.cblkH)
	gy1 := ceilDiv(overlap.Y1, sb.cblkH) - floorDivInt(sb.Rect.Y0, sb.cblkH)
	var indices []int
	for gy := gy0; gy < gy1 && gy < sb.gridH; gy++ {
		for gx := gx0; gx < gx1 && gx < sb.gridW; gx++ {
			if gx < 0 || gy < 0 {
				continue
			}
			indices = append(indices, gy*sb.gridW+gx)
		}
	}
	return indices
}
