package canvas

// Orientation identifies a subband's band type within a resolution.
type Orientation int

const (
	OrientLL Orientation = iota // only valid at resolution 0
	OrientHL
	OrientLH
	OrientHH
)

// TileRect returns the canvas rectangle of tile (tx,ty) in a grid whose
// origin is (originX,originY) with the given tile size, clipped to the
// image rectangle (spec §3 "Tile grid").
func TileRect(image Rect, originX, originY, tileW, tileH, tx, ty int) Rect {
	r := Rect{
		X0: originX + tx*tileW,
		Y0: originY + ty*tileH,
		X1: originX + (tx+1)*tileW,
		Y1: originY + (ty+1)*tileH,
	}
	return r.Intersect(image)
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// TileComponentRect projects a tile rectangle onto component sample-grid
// coordinates: intersect with the component's sample grid, then divide by
// the component's subsampling factors (dx,dy), spec §3 "Tile-component".
func TileComponentRect(tile, componentGrid Rect, dx, dy int) Rect {
	t := tile.Intersect(componentGrid)
	return Rect{
		X0: ceilDiv(t.X0, dx),
		Y0: ceilDiv(t.Y0, dy),
		X1: ceilDiv(t.X1, dx),
		Y1: ceilDiv(t.Y1, dy),
	}
}

// ResolutionRect computes the rectangle of resolution r (0=lowest,
// R=highest) given the full-resolution tile-component rectangle, by
// dividing by 2^(R-r) with ceildivpow2 (spec §3 "Resolution r").
func ResolutionRect(tc Rect, R, r int) Rect {
	n := R - r
	return Rect{
		X0: CeilDivPow2(tc.X0, n),
		Y0: CeilDivPow2(tc.Y0, n),
		X1: CeilDivPow2(tc.X1, n),
		Y1: CeilDivPow2(tc.Y1, n),
	}
}

// subbandDivisor returns the ceildivpow2 divisor exponent and the
// orientation-dependent half-band shift exponent for resolution r (r=0 is
// the LL-only resolution) of an R-decomposition tile-component. This is
// the standard's Annex B.15 formula, which spec §3's "offsets of
// 2^(R-r-1)" prose approximates; the equation as actually used by
// reference decoders indexes the shift by the decomposition level that
// produced resolution r's detail subbands (R-r+1 for r>=1), not R-r-1,
// since the latter is undefined at r=R. See DESIGN.md.
func subbandDivisor(R, r int) (n, shiftExp int) {
	if r == 0 {
		return R, 0
	}
	n = R - r + 1
	return n, n - 1
}

// SubbandRect computes the rectangle of the subband with the given
// orientation at resolution r of an R-decomposition tile-component (spec
// §3 "Subband"). OrientLL is only valid at r==0.
func SubbandRect(tc Rect, R, r int, orient Orientation) Rect {
	n, shiftExp := subbandDivisor(R, r)
	var xob, yob int
	switch orient {
	case OrientHL:
		xob = 1
	case OrientLH:
		yob = 1
	case OrientHH:
		xob, yob = 1, 1
	}
	shift := 0
	if r > 0 {
		shift = 1 << uint(shiftExp)
	}
	return Rect{
		X0: CeilDivPow2(tc.X0-xob*shift, n),
		Y0: CeilDivPow2(tc.Y0-yob*shift, n),
		X1: CeilDivPow2(tc.X1-xob*shift, n),
		Y1: CeilDivPow2(tc.Y1-yob*shift, n),
	}
}

// GetBandWindow projects an axis-aligned window expressed in
// full-resolution tile-component coordinates down to the given
// orientation's subband at the given number of remaining decompositions,
// applying the same orientation shift then ceildivpow2 (spec §4.4). It is
// used by the scheduler to select which codeblocks intersect a requested
// decode window, and by the tier-2 parser to skip irrelevant blocks.
func GetBandWindow(numDecomps int, orient Orientation, window Rect) Rect {
	if numDecomps == 0 || orient == OrientLL {
		return window
	}
	var xob, yob int
	switch orient {
	case OrientHL:
		xob = 1
	case OrientLH:
		yob = 1
	case OrientHH:
		xob, yob = 1, 1
	}
	shift := 1 << uint(numDecomps-1)
	return Rect{
		X0: CeilDivPow2(window.X0-xob*shift, numDecomps),
		Y0: CeilDivPow2(window.Y0-yob*shift, numDecomps),
		X1: CeilDivPow2(window.X1-xob*shift, numDecomps),
		Y1: CeilDivPow2(window.Y1-yob*shift, numDecomps),
	}
}
