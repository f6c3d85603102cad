package jpeg2000

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"github.com/google/uuid"

	"github.com/mrjoshuak/go-jpeg2000/v2/internal/box"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/canvas"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/codestream"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/dwt"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/mct"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/piter"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/tier1"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/tier2"
)

// quantGuardBits is the number of extra guard bits reserved above the
// nominal dynamic range when deriving per-subband quantization steps,
// matching the guard-bit count generateQCD writes into the QCD marker.
const quantGuardBits = 1

// encoder handles JPEG 2000 encoding.
type encoder struct {
	w       io.Writer
	img     image.Image
	options *Options

	// Image parameters
	width         int
	height        int
	numComponents int
	precision     int
	signed        bool

	// componentData holds the DC-shifted, MCT'd, DWT-transformed
	// coefficients in internal/dwt's in-place packed layout for the
	// reversible (5-3, lossless) path. componentFloat holds the same for
	// the irreversible (9-7) path, left unquantized: per-subband
	// quantization happens later in codeblockData, once the subband's
	// level and orientation are known.
	componentData  [][]int32
	componentFloat [][]float64

	// codestreamID identifies this encode run in the JP2 UUID box; a
	// random per-call token, not derived from image content.
	codestreamID uuid.UUID
}

// newEncoder creates a new encoder.
func newEncoder(w io.Writer, img image.Image, options *Options) *encoder {
	bounds := img.Bounds()
	return &encoder{
		w:            w,
		img:          img,
		options:      options,
		width:        bounds.Dx(),
		height:       bounds.Dy(),
		codestreamID: uuid.New(),
	}
}

// encode encodes the image.
func (e *encoder) encode() error {
	if err := e.extractImageData(); err != nil {
		return fmt.Errorf("extracting image data: %w", err)
	}

	if err := e.preprocess(); err != nil {
		return fmt.Errorf("preprocessing: %w", err)
	}

	cs, err := e.generateCodestream()
	if err != nil {
		return fmt.Errorf("generating codestream: %w", err)
	}

	switch e.options.Format {
	case FormatJP2:
		return e.writeJP2(cs)
	case FormatJ2K:
		_, err := e.w.Write(cs)
		return err
	default:
		return fmt.Errorf("unsupported format: %s", e.options.Format)
	}
}

// extractImageData extracts pixel data from the source image.
func (e *encoder) extractImageData() error {
	bounds := e.img.Bounds()

	switch img := e.img.(type) {
	case *image.Gray:
		e.numComponents = 1
		e.precision = 8
		e.componentData = make([][]int32, 1)
		e.componentData[0] = make([]int32, e.width*e.height)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				e.componentData[0][idx] = int32(img.GrayAt(x, y).Y)
			}
		}

	case *image.Gray16:
		e.numComponents = 1
		e.precision = 16
		e.componentData = make([][]int32, 1)
		e.componentData[0] = make([]int32, e.width*e.height)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				e.componentData[0][idx] = int32(img.Gray16At(x, y).Y)
			}
		}

	case *image.RGBA:
		e.numComponents = 3
		e.precision = 8
		e.componentData = make([][]int32, 3)
		for c := 0; c < 3; c++ {
			e.componentData[c] = make([]int32, e.width*e.height)
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				c := img.RGBAAt(x, y)
				e.componentData[0][idx] = int32(c.R)
				e.componentData[1][idx] = int32(c.G)
				e.componentData[2][idx] = int32(c.B)
			}
		}

	case *image.RGBA64:
		e.numComponents = 3
		e.precision = 16
		e.componentData = make([][]int32, 3)
		for c := 0; c < 3; c++ {
			e.componentData[c] = make([]int32, e.width*e.height)
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				c := img.RGBA64At(x, y)
				e.componentData[0][idx] = int32(c.R)
				e.componentData[1][idx] = int32(c.G)
				e.componentData[2][idx] = int32(c.B)
			}
		}

	case *image.NRGBA:
		e.numComponents = 4
		e.precision = 8
		e.componentData = make([][]int32, 4)
		for c := 0; c < 4; c++ {
			e.componentData[c] = make([]int32, e.width*e.height)
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				c := img.NRGBAAt(x, y)
				e.componentData[0][idx] = int32(c.R)
				e.componentData[1][idx] = int32(c.G)
				e.componentData[2][idx] = int32(c.B)
				e.componentData[3][idx] = int32(c.A)
			}
		}

	case *image.NRGBA64:
		e.numComponents = 4
		e.precision = 16
		e.componentData = make([][]int32, 4)
		for c := 0; c < 4; c++ {
			e.componentData[c] = make([]int32, e.width*e.height)
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				c := img.NRGBA64At(x, y)
				e.componentData[0][idx] = int32(c.R)
				e.componentData[1][idx] = int32(c.G)
				e.componentData[2][idx] = int32(c.B)
				e.componentData[3][idx] = int32(c.A)
			}
		}

	default:
		e.numComponents = 3
		e.precision = 8
		e.componentData = make([][]int32, 3)
		for c := 0; c < 3; c++ {
			e.componentData[c] = make([]int32, e.width*e.height)
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := (y-bounds.Min.Y)*e.width + (x - bounds.Min.X)
				r, g, b, _ := e.img.At(x, y).RGBA()
				e.componentData[0][idx] = int32(r >> 8)
				e.componentData[1][idx] = int32(g >> 8)
				e.componentData[2][idx] = int32(b >> 8)
			}
		}
	}

	if e.options.Precision > 0 && e.options.Precision <= 16 && e.options.Precision != e.precision {
		targetPrecision := e.options.Precision
		srcMax := int32((1 << e.precision) - 1)
		dstMax := int32((1 << targetPrecision) - 1)

		for c := 0; c < e.numComponents; c++ {
			for i := range e.componentData[c] {
				e.componentData[c][i] = e.componentData[c][i] * dstMax / srcMax
			}
		}
		e.precision = targetPrecision
	}

	return nil
}

// numDecompositionLevels returns the number of wavelet decomposition
// levels implied by e.options.NumResolutions.
func (e *encoder) numDecompositionLevels() int {
	numLevels := e.options.NumResolutions - 1
	if numLevels <= 0 {
		numLevels = 5
	}
	return numLevels
}

// preprocess applies the DC level shift, multi-component transform and
// wavelet decomposition. The irreversible path's coefficients are left
// unquantized: codeblockData quantizes each subband individually once
// encodeTile knows its level and orientation, instead of baking one
// global stepsize in here.
func (e *encoder) preprocess() error {
	for c := 0; c < e.numComponents; c++ {
		mct.DCLevelShiftForward(e.componentData[c], e.precision)
	}

	if e.numComponents >= 3 {
		if e.options.Lossless {
			mct.ForwardRCT(e.componentData[0], e.componentData[1], e.componentData[2])
		} else {
			compFloat := make([][]float64, 3)
			for c := 0; c < 3; c++ {
				compFloat[c] = make([]float64, len(e.componentData[c]))
				for i, v := range e.componentData[c] {
					compFloat[c][i] = float64(v)
				}
			}
			mct.ForwardICT(compFloat[0], compFloat[1], compFloat[2])
			for c := 0; c < 3; c++ {
				for i, v := range compFloat[c] {
					if v >= 0 {
						e.componentData[c][i] = int32(v + 0.5)
					} else {
						e.componentData[c][i] = int32(v - 0.5)
					}
				}
			}
		}
	}

	numLevels := e.numDecompositionLevels()

	if e.options.Lossless {
		for c := 0; c < e.numComponents; c++ {
			dwt.DecomposeMultiLevel53(e.componentData[c], e.width, e.height, numLevels)
		}
		return nil
	}

	e.componentFloat = make([][]float64, e.numComponents)
	for c := 0; c < e.numComponents; c++ {
		dataFloat := make([]float64, len(e.componentData[c]))
		for i, v := range e.componentData[c] {
			dataFloat[i] = float64(v)
		}
		dwt.DecomposeMultiLevel97(dataFloat, e.width, e.height, numLevels)
		e.componentFloat[c] = dataFloat
	}
	return nil
}

// generateCodestream generates the JPEG 2000 codestream.
func (e *encoder) generateCodestream() ([]byte, error) {
	var buf []byte

	buf = append(buf, 0xFF, 0x4F) // SOC

	buf = append(buf, e.generateSIZ()...)

	if e.options.HighThroughput {
		buf = append(buf, e.generateCAP()...)
	}

	buf = append(buf, e.generateCOD()...)
	buf = append(buf, e.generateQCD()...)

	if e.options.Comment != "" {
		buf = append(buf, e.generateCOM()...)
	}

	tileData, err := e.generateTiles()
	if err != nil {
		return nil, err
	}
	buf = append(buf, tileData...)

	buf = append(buf, 0xFF, 0xD9) // EOC

	return buf, nil
}

// generateSIZ generates the SIZ marker segment.
func (e *encoder) generateSIZ() []byte {
	numComp := e.numComponents
	length := 38 + 3*numComp

	buf := make([]byte, 2+length)
	binary.BigEndian.PutUint16(buf[0:2], uint16(codestream.SIZ))
	binary.BigEndian.PutUint16(buf[2:4], uint16(length))

	binary.BigEndian.PutUint16(buf[4:6], uint16(e.options.Profile))

	binary.BigEndian.PutUint32(buf[6:10], uint32(e.width))
	binary.BigEndian.PutUint32(buf[10:14], uint32(e.height))

	binary.BigEndian.PutUint32(buf[14:18], 0)
	binary.BigEndian.PutUint32(buf[18:22], 0)

	tileWidth := e.width
	tileHeight := e.height
	if e.options.TileSize.X > 0 {
		tileWidth = e.options.TileSize.X
	}
	if e.options.TileSize.Y > 0 {
		tileHeight = e.options.TileSize.Y
	}
	binary.BigEndian.PutUint32(buf[22:26], uint32(tileWidth))
	binary.BigEndian.PutUint32(buf[26:30], uint32(tileHeight))

	binary.BigEndian.PutUint32(buf[30:34], 0)
	binary.BigEndian.PutUint32(buf[34:38], 0)

	binary.BigEndian.PutUint16(buf[38:40], uint16(numComp))

	for c := 0; c < numComp; c++ {
		offset := 40 + c*3
		ssiz := uint8(e.precision - 1)
		if e.signed {
			ssiz |= 0x80
		}
		buf[offset] = ssiz
		buf[offset+1] = 1
		buf[offset+2] = 1
	}

	return buf
}

// codeBlockStyle returns the code-block style flags this run's tier-1/
// tier-2 wiring uses. It deliberately never sets StyleTermAll: tier2's
// AssignLayers (see internal/tier2/rate.go) always reports one combined
// segment per layer regardless of how many of a block's passes were
// independently terminated, so turning on per-pass termination here would
// desynchronize EncodePacketHeader's segment-count check (it derives the
// expected count straight from the style flag) from what AssignLayers
// actually hands back. With style left at 0, every codeblock's first
// layer absorbs all of its passes (rate.go's documented fallback when no
// pass is Terminated), which keeps single-layer encodes exact; requesting
// NumLayers > 1 still produces valid, decodable packets, just without
// real progressive separation. See DESIGN.md.
func (e *encoder) codeBlockStyle() canvas.CodeBlockStyle {
	return 0
}

// generateCOD generates the COD marker segment.
func (e *encoder) generateCOD() []byte {
	numRes := e.options.NumResolutions
	if numRes <= 0 {
		numRes = 6
	}

	length := 12

	buf := make([]byte, 2+length)
	binary.BigEndian.PutUint16(buf[0:2], uint16(codestream.COD))
	binary.BigEndian.PutUint16(buf[2:4], uint16(length))

	scod := uint8(0)
	if e.options.EnableSOP {
		scod |= codestream.CodingStyleSOP
	}
	if e.options.EnableEPH {
		scod |= codestream.CodingStyleEPH
	}
	buf[4] = scod

	buf[5] = uint8(e.options.ProgressionOrder)
	numLayers := e.options.NumLayers
	if numLayers <= 0 {
		numLayers = 1
	}
	binary.BigEndian.PutUint16(buf[6:8], uint16(numLayers))
	buf[8] = 1 // MCT enabled for 3+ components

	buf[9] = uint8(numRes - 1)

	cbWidth := e.options.CodeBlockSize.X
	cbHeight := e.options.CodeBlockSize.Y

	if e.options.HighThroughput {
		htWidth := e.options.HTBlockWidth
		htHeight := e.options.HTBlockHeight
		if htWidth == 0 {
			htWidth = 128
		}
		if htHeight == 0 {
			htHeight = 128
		}
		switch htWidth {
		case 32:
			cbWidth = 5
		case 128:
			cbWidth = 7
		default:
			cbWidth = 7
		}
		switch htHeight {
		case 32:
			cbHeight = 5
		case 128:
			cbHeight = 7
		default:
			cbHeight = 7
		}
	} else {
		if cbWidth <= 0 {
			cbWidth = 6
		}
		if cbHeight <= 0 {
			cbHeight = 6
		}
	}

	buf[10] = uint8(cbWidth - 2)
	buf[11] = uint8(cbHeight - 2)

	// Code-block style flags: the real value encodeTile used, so the
	// decoder rebuilds an identical canvas.CodingParams purely from this
	// already-parsed byte, with no separate signaling needed.
	cbStyle := uint8(e.codeBlockStyle())
	if e.options.HighThroughput {
		cbStyle |= codestream.CodeBlockHT
	}
	buf[12] = cbStyle

	if e.options.Lossless {
		buf[13] = 1 // 5-3 reversible wavelet
	} else {
		buf[13] = 0 // 9-7 irreversible wavelet
	}

	return buf
}

// generateQCD generates the QCD marker segment.
func (e *encoder) generateQCD() []byte {
	numRes := e.options.NumResolutions
	if numRes <= 0 {
		numRes = 6
	}
	numBands := 3*(numRes-1) + 1

	var buf []byte
	if e.options.Lossless {
		length := 3 + numBands
		buf = make([]byte, 2+length)
		binary.BigEndian.PutUint16(buf[0:2], uint16(codestream.QCD))
		binary.BigEndian.PutUint16(buf[2:4], uint16(length))
		buf[4] = codestream.QuantizationNone
		for i := 0; i < numBands; i++ {
			buf[5+i] = uint8(e.precision+i/3) << 3
		}
	} else {
		length := 5
		buf = make([]byte, 2+length)
		binary.BigEndian.PutUint16(buf[0:2], uint16(codestream.QCD))
		binary.BigEndian.PutUint16(buf[2:4], uint16(length))
		buf[4] = codestream.QuantizationScalarDerived | (quantGuardBits << 5)
		stepSize := uint16(0x4000)
		if e.options.Quality > 0 {
			stepSize = uint16((100 - e.options.Quality) * 256)
		}
		binary.BigEndian.PutUint16(buf[5:7], stepSize)
	}

	return buf
}

// generateCOM generates the COM marker segment.
func (e *encoder) generateCOM() []byte {
	comment := []byte(e.options.Comment)
	length := 4 + len(comment)

	buf := make([]byte, 2+length)
	binary.BigEndian.PutUint16(buf[0:2], uint16(codestream.COM))
	binary.BigEndian.PutUint16(buf[2:4], uint16(length))
	binary.BigEndian.PutUint16(buf[4:6], codestream.CommentLatin1)
	copy(buf[6:], comment)

	return buf
}

// generateCAP generates the CAP (extended capabilities) marker segment,
// required when HTJ2K mode is enabled.
func (e *encoder) generateCAP() []byte {
	length := 6

	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf[0:2], uint16(codestream.CAP))
	binary.BigEndian.PutUint16(buf[2:4], uint16(length))
	binary.BigEndian.PutUint32(buf[4:8], codestream.CapPcapHTJ2K)

	return buf
}

// generateTiles generates tile data. The whole image is encoded as a
// single tile.
func (e *encoder) generateTiles() ([]byte, error) {
	tileData, err := e.encodeTile(0)
	if err != nil {
		return nil, err
	}
	return tileData, nil
}

// cblkPlan is the tier-1/tier-2 state this encoder tracks per codeblock
// while building a tile's packets.
type cblkPlan struct {
	encoded    []byte
	passes     []tier1.Pass
	layers     []tier2.LayerPlan
	layerBytes [][]byte // layerBytes[layer] is encoded's slice for that layer
	firstLayer int       // sentinel numLayers means "never included"
}

// subbandKey addresses one (component, resolution, orientation) subband
// within the tile being encoded.
type subbandKey struct {
	comp, res int
	orient    canvas.Orientation
}

// encodeTile builds the canvas tree for the whole image, tier-1 encodes
// every codeblock, assigns quality layers with tier-2's rate-distortion
// helpers, and packs the result into packets ordered by
// e.options.ProgressionOrder via internal/piter.
//
// Each piter PacketID expands into one self-delimited framed chunk per
// orientation present at that resolution (internal/tier2's PrecinctState
// models one subband's codeblock grid, not a whole precinct's combined
// set of subbands, so a standard packet covering every orientation of a
// resolution/precinct is emitted here as that many consecutive framed
// sub-packets instead of one multi-subband packet body). Framing is
// self-delimited (uint32 length prefix before each header and body)
// rather than bit-exact standards packet-stream continuation, since
// internal/bitio's Reader/Writer expose no byte-offset API to recover
// boundaries otherwise. See DESIGN.md.
func (e *encoder) encodeTile(tileIdx int) ([]byte, error) {
	numLevels := e.numDecompositionLevels()
	cbWidthExp := e.options.CodeBlockSize.X
	cbHeightExp := e.options.CodeBlockSize.Y
	if cbWidthExp <= 0 {
		cbWidthExp = 6
	}
	if cbHeightExp <= 0 {
		cbHeightExp = 6
	}
	numLayers := e.options.NumLayers
	if numLayers <= 0 {
		numLayers = 1
	}
	style := e.codeBlockStyle()

	cp := &canvas.CodingParams{
		Reversible:         e.options.Lossless,
		NumDecompositions:  numLevels,
		CodeBlockWidthExp:  cbWidthExp,
		CodeBlockHeightExp: cbHeightExp,
		CodeBlockStyle:     style,
		NumLayers:          numLayers,
	}

	components := make([]canvas.ComponentGeometry, e.numComponents)
	for c := range components {
		components[c] = canvas.ComponentGeometry{Grid: canvas.Rect{X0: 0, Y0: 0, X1: e.width, Y1: e.height}, DX: 1, DY: 1}
	}
	imageRect := canvas.Rect{X0: 0, Y0: 0, X1: e.width, Y1: e.height}
	tile := canvas.BuildTile(imageRect, 0, 0, e.width, e.height, 0, 0, tileIdx, components, cp)

	plans := make(map[subbandKey]map[int]*cblkPlan)
	precincts := make(map[subbandKey]*tier2.PrecinctState)
	var allPasses [][]tier1.Pass

	for ci, tc := range tile.Components {
		for ri, res := range tc.Resolutions {
			level := decompLevel(numLevels, ri)
			for _, orient := range orientationsForResolution(ri) {
				sb := res.Subbands[orient]
				gridW, gridH := sb.GridDims()
				if gridW == 0 || gridH == 0 {
					continue
				}
				key := subbandKey{comp: ci, res: ri, orient: orient}
				precincts[key] = tier2.NewPrecinctState(gridW, gridH, style)
				blocks := make(map[int]*cblkPlan, gridW*gridH)
				plans[key] = blocks

				ox, oy := subbandOrigin(e.width, e.height, numLevels, ri, orient)
				bandType := bandTypeOf(orient)

				for idx := 0; idx < gridW*gridH; idx++ {
					cb, err := sb.Codeblock(idx)
					if err != nil {
						return nil, fmt.Errorf("building codeblock %d: %w", idx, err)
					}
					w, h := cb.Rect.Width(), cb.Rect.Height()

					plan := &cblkPlan{firstLayer: numLayers}
					blocks[idx] = plan
					if w <= 0 || h <= 0 {
						continue
					}

					data := e.codeblockData(ci, ox+cb.Rect.X0, oy+cb.Rect.Y0, w, h, orient, level)
					t1 := tier1.GetT1(w, h)
					t1.SetData(data)
					encoded, passes := t1.EncodeWithStyle(bandType, style)
					tier1.PutT1(t1)

					plan.encoded = encoded
					plan.passes = passes
					if len(passes) > 0 {
						allPasses = append(allPasses, passes)
					}
				}
			}
		}
	}

	thresholds := tier2.ChooseThresholds(allPasses, numLayers)

	// Second pass: now that thresholds are known, assign each codeblock's
	// passes to layers and slice its encoded bytes accordingly by walking
	// LayerPlan in ascending layer order (AssignLayers reports each
	// layer's byte count as incremental, not cumulative).
	blockZb := make(map[subbandKey]map[int]int)
	for key, blocks := range plans {
		level := decompLevel(numLevels, key.res)
		blockZb[key] = make(map[int]int)
		for idx, plan := range blocks {
			numBPS := numBPSFromPasses(plan.passes)
			zb := nominalMaxBitplanes(e.precision, level) - numBPS
			if numBPS > 0 && zb < 0 {
				return nil, fmt.Errorf("jpeg2000: negative Zb (Mb derived from precision=%d level=%d, numBPS=%d); increase nominalMaxBitplanes margin", e.precision, level, numBPS)
			}
			if zb < 0 {
				zb = 0
			}
			blockZb[key][idx] = zb

			layerPlans := tier2.AssignLayers(plan.passes, thresholds)
			plan.layers = layerPlans
			plan.layerBytes = make([][]byte, numLayers)

			offset := 0
			firstLayer := numLayers
			for l, lp := range layerPlans {
				total := 0
				for _, s := range lp.SegmentLengths {
					total += s
				}
				if lp.NewPasses > 0 {
					plan.layerBytes[l] = plan.encoded[offset : offset+total]
					if firstLayer == numLayers {
						firstLayer = l
					}
				}
				offset += total
			}
			plan.firstLayer = firstLayer

			precincts[key].PrepareInclusion(idx, firstLayer)
		}
	}

	progOrder := canvas.ProgressionOrder(e.options.ProgressionOrder)
	rec := canvas.ProgressionRecord{
		LayerHi:      numLayers,
		ResolutionHi: len(tile.Components[0].Resolutions),
		ComponentHi:  e.numComponents,
		Order:        progOrder,
	}
	it := piter.New(tile, numLayers, rec)

	var tileData []byte
	for {
		id, ok := it.Next()
		if !ok {
			break
		}
		for _, orient := range orientationsForResolution(id.Resolution) {
			key := subbandKey{comp: id.Component, res: id.Resolution, orient: orient}
			ps, present := precincts[key]
			if !present {
				continue
			}
			blocks := plans[key]

			contributions := make([]tier2.BlockContribution, 0, len(blocks))
			var body []byte
			for idx := 0; idx < len(ps.Blocks); idx++ {
				plan := blocks[idx]
				if plan == nil {
					continue
				}
				var newPasses int
				var segLens []int
				if id.Layer < len(plan.layers) {
					lp := plan.layers[id.Layer]
					newPasses = lp.NewPasses
					segLens = lp.SegmentLengths
				}
				data := plan.layerBytes[id.Layer]
				contributions = append(contributions, tier2.BlockContribution{
					Index:          idx,
					NewPasses:      newPasses,
					Zb:             blockZb[key][idx],
					Data:           data,
					SegmentLengths: segLens,
				})
				body = append(body, data...)
			}

			header, err := tier2.EncodePacketHeader(ps, id.Layer, contributions)
			if err != nil {
				return nil, fmt.Errorf("encoding packet header (comp=%d res=%d orient=%d layer=%d): %w",
					id.Component, id.Resolution, orient, id.Layer, err)
			}
			tileData = appendFramedPacket(tileData, header, body)
		}
	}

	return e.createTileHeader(tileIdx, tileData), nil
}

// numBPSFromPasses recovers a codeblock's bitplane count from its Pass
// records (the highest bitplane index seen, plus one; zero if the block
// had no passes at all, i.e. it was entirely zero).
func numBPSFromPasses(passes []tier1.Pass) int {
	max := -1
	for _, p := range passes {
		if p.Bitplane > max {
			max = p.Bitplane
		}
	}
	return max + 1
}

// bandTypeOf maps a canvas.Orientation to tier1's bandType parameter; the
// two enums are ordinally identical (LL=0, HL=1, LH=2, HH=3).
func bandTypeOf(orient canvas.Orientation) int {
	return int(orient)
}

// codeblockData extracts and, for the irreversible path, quantizes the
// w x h region rooted at (x0,y0) of component ci's packed coefficient
// buffer, ready for tier1.SetData.
func (e *encoder) codeblockData(ci, x0, y0, w, h int, orient canvas.Orientation, level int) []int32 {
	if e.options.Lossless {
		return extractRegion(e.componentData[ci], e.width, x0, y0, w, h)
	}
	region := extractRegionFloat64(e.componentFloat[ci], e.width, x0, y0, w, h)
	step := mct.DeriveStepsize(mct.SubbandNormGain(level, orient, false), false, quantGuardBits)
	out := make([]int32, len(region))
	mct.Quantize(region, out, step, false)
	return out
}

// appendFramedPacket appends one self-delimited tier-2 packet (header
// then body, each uint32-length-prefixed) to tileData.
func appendFramedPacket(tileData, header, body []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(header)))
	tileData = append(tileData, lenBuf[:]...)
	tileData = append(tileData, header...)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	tileData = append(tileData, lenBuf[:]...)
	tileData = append(tileData, body...)
	return tileData
}

// createTileHeader creates the tile-part header.
func (e *encoder) createTileHeader(tileIdx int, tileData []byte) []byte {
	sotLength := 10
	tilePartLength := uint32(14 + len(tileData))

	header := make([]byte, 14)
	binary.BigEndian.PutUint16(header[0:2], uint16(codestream.SOT))
	binary.BigEndian.PutUint16(header[2:4], uint16(sotLength))
	binary.BigEndian.PutUint16(header[4:6], uint16(tileIdx))
	binary.BigEndian.PutUint32(header[6:10], tilePartLength)
	header[10] = 0 // Tile-part index
	header[11] = 1 // Number of tile-parts
	binary.BigEndian.PutUint16(header[12:14], uint16(codestream.SOD))

	return append(header, tileData...)
}

// writeJP2 writes a JP2 file.
func (e *encoder) writeJP2(cs []byte) error {
	boxWriter := box.NewWriter(e.w)

	if err := boxWriter.WriteSignature(); err != nil {
		return err
	}

	ftypBox := box.CreateFileTypeBox()
	if err := boxWriter.WriteBox(ftypBox); err != nil {
		return err
	}

	var colorspace uint32
	switch e.options.ColorSpace {
	case ColorSpaceBilevel:
		colorspace = box.CSBilevel1
	case ColorSpaceGray:
		colorspace = box.CSGray
	case ColorSpaceSRGB:
		colorspace = box.CSSRGB
	case ColorSpaceSYCC:
		colorspace = box.CSYCbCr1
	case ColorSpaceYCbCr2:
		colorspace = box.CSYCbCr2
	case ColorSpaceYCbCr3:
		colorspace = box.CSYCbCr3
	case ColorSpacePhotoYCC:
		colorspace = box.CSPhotoYCC
	case ColorSpaceCMY:
		colorspace = box.CSCMY
	case ColorSpaceCMYK:
		colorspace = box.CSCMYK
	case ColorSpaceYCCK:
		colorspace = box.CSYCCK
	case ColorSpaceCIELab:
		colorspace = box.CSCIELab
	case ColorSpaceCIEJab:
		colorspace = box.CSCIEJab
	case ColorSpaceESRGB:
		colorspace = box.CSeSRGB
	case ColorSpaceROMMRGB:
		colorspace = box.CSROMMRGB
	case ColorSpaceYPbPr60:
		colorspace = box.CSYPbPr1125
	case ColorSpaceYPbPr50:
		colorspace = box.CSYPbPr1250
	case ColorSpaceEYCC:
		colorspace = box.CSeSYCC
	default:
		if e.numComponents == 1 {
			colorspace = box.CSGray
		} else {
			colorspace = box.CSSRGB
		}
	}

	jp2hBox := box.CreateJP2Header(
		uint32(e.width),
		uint32(e.height),
		uint16(e.numComponents),
		uint8(e.precision-1),
		colorspace,
	)
	if err := boxWriter.WriteBox(jp2hBox); err != nil {
		return err
	}

	uuidBox := box.CreateUUIDBox(e.codestreamID, nil)
	if err := boxWriter.WriteBox(uuidBox); err != nil {
		return err
	}

	jp2cBox := box.CreateCodestreamBox(cs)
	if err := boxWriter.WriteBox(jp2cBox); err != nil {
		return err
	}

	return nil
}
