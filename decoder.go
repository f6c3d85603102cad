package jpeg2000

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/mrjoshuak/go-jpeg2000/v2/internal/bitio"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/box"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/canvas"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/codestream"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/dwt"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/mct"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/piter"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/tier1"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/tier2"

	"github.com/google/uuid"
)

// decoder handles JPEG 2000 decoding.
type decoder struct {
	r            *bufio.Reader
	format       Format
	header       *codestream.Header
	jp2Header    *box.JP2Header
	codestream   []byte
	codestreamID uuid.UUID

	// tileReader walks d.codestream past the main header, positioned
	// exactly where codestream.Parser.ReadHeader left off (just after the
	// first tile-part's SOT marker tag), so decodeTile can keep reading
	// tile-parts sequentially without re-scanning for marker bytes.
	tileReader *byteReader
}

// newDecoder creates a new decoder.
func newDecoder(r io.Reader) *decoder {
	return &decoder{
		r: bufio.NewReader(r),
	}
}

// decode decodes the image.
func (d *decoder) decode(cfg *Config) (image.Image, error) {
	// Detect format and read headers
	if err := d.readFormat(); err != nil {
		return nil, fmt.Errorf("reading format: %w", err)
	}

	// Parse codestream header
	if err := d.parseCodestream(); err != nil {
		return nil, fmt.Errorf("parsing codestream: %w", err)
	}

	// Decode tiles
	img, err := d.decodeTiles(cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding tiles: %w", err)
	}

	return img, nil
}

// readMetadata reads only the metadata without decoding.
func (d *decoder) readMetadata() (*Metadata, error) {
	if err := d.readFormat(); err != nil {
		return nil, err
	}

	if err := d.parseCodestream(); err != nil {
		return nil, err
	}

	h := d.header
	m := &Metadata{
		Format:           d.format,
		Width:            int(h.ImageWidth - h.ImageXOffset),
		Height:           int(h.ImageHeight - h.ImageYOffset),
		NumComponents:    int(h.NumComponents),
		BitsPerComponent: make([]int, h.NumComponents),
		Signed:           make([]bool, h.NumComponents),
		Profile:          Profile(h.Profile),
		NumResolutions:   int(h.CodingStyle.NumDecompositions) + 1,
		NumQualityLayers: int(h.CodingStyle.NumLayers),
		TileWidth:        int(h.TileWidth),
		TileHeight:       int(h.TileHeight),
		NumTilesX:        int(h.NumTilesX),
		NumTilesY:        int(h.NumTilesY),
		Comment:          h.Comment,
		ColorSpace:       ColorSpaceUnspecified, // Default for J2K without JP2 container
		CodestreamID:     d.codestreamID,
	}

	for i, c := range h.ComponentInfo {
		m.BitsPerComponent[i] = c.Precision()
		m.Signed[i] = c.IsSigned()
	}

	// Get color space from JP2 header if available
	if d.jp2Header != nil && d.jp2Header.ColorSpec != nil {
		switch d.jp2Header.ColorSpec.EnumeratedColorspace {
		case box.CSBilevel1, box.CSBilevel2:
			m.ColorSpace = ColorSpaceBilevel
		case box.CSGray:
			m.ColorSpace = ColorSpaceGray
		case box.CSSRGB:
			m.ColorSpace = ColorSpaceSRGB
		case box.CSYCbCr1, box.CSsYCC:
			m.ColorSpace = ColorSpaceSYCC
		case box.CSYCbCr2:
			m.ColorSpace = ColorSpaceYCbCr2
		case box.CSYCbCr3:
			m.ColorSpace = ColorSpaceYCbCr3
		case box.CSPhotoYCC:
			m.ColorSpace = ColorSpacePhotoYCC
		case box.CSCMY:
			m.ColorSpace = ColorSpaceCMY
		case box.CSCMYK:
			m.ColorSpace = ColorSpaceCMYK
		case box.CSYCCK:
			m.ColorSpace = ColorSpaceYCCK
		case box.CSCIELab:
			m.ColorSpace = ColorSpaceCIELab
		case box.CSCIEJab:
			m.ColorSpace = ColorSpaceCIEJab
		case box.CSeSRGB:
			m.ColorSpace = ColorSpaceESRGB
		case box.CSROMMRGB:
			m.ColorSpace = ColorSpaceROMMRGB
		case box.CSYPbPr1125:
			m.ColorSpace = ColorSpaceYPbPr60
		case box.CSYPbPr1250:
			m.ColorSpace = ColorSpaceYPbPr50
		case box.CSeSYCC:
			m.ColorSpace = ColorSpaceEYCC
		default:
			// Unknown enumcs value - not supported
			m.ColorSpace = ColorSpaceUnknown
		}
		m.ICCProfile = d.jp2Header.ColorSpec.ICCProfile
	}

	return m, nil
}

// getColorSpace returns the ColorSpace from the JP2 header.
func (d *decoder) getColorSpace() ColorSpace {
	if d.jp2Header == nil || d.jp2Header.ColorSpec == nil {
		return ColorSpaceUnspecified
	}

	switch d.jp2Header.ColorSpec.EnumeratedColorspace {
	case box.CSBilevel1, box.CSBilevel2:
		return ColorSpaceBilevel
	case box.CSGray:
		return ColorSpaceGray
	case box.CSSRGB:
		return ColorSpaceSRGB
	case box.CSYCbCr1, box.CSsYCC:
		return ColorSpaceSYCC
	case box.CSYCbCr2:
		return ColorSpaceYCbCr2
	case box.CSYCbCr3:
		return ColorSpaceYCbCr3
	case box.CSPhotoYCC:
		return ColorSpacePhotoYCC
	case box.CSCMY:
		return ColorSpaceCMY
	case box.CSCMYK:
		return ColorSpaceCMYK
	case box.CSYCCK:
		return ColorSpaceYCCK
	case box.CSCIELab:
		return ColorSpaceCIELab
	case box.CSCIEJab:
		return ColorSpaceCIEJab
	case box.CSeSRGB:
		return ColorSpaceESRGB
	case box.CSROMMRGB:
		return ColorSpaceROMMRGB
	case box.CSYPbPr1125:
		return ColorSpaceYPbPr60
	case box.CSYPbPr1250:
		return ColorSpaceYPbPr50
	case box.CSeSYCC:
		return ColorSpaceEYCC
	default:
		return ColorSpaceUnknown
	}
}

// readFormat detects the file format and reads file-level structures.
func (d *decoder) readFormat() error {
	// Peek at first bytes to detect format
	magic, err := d.r.Peek(12)
	if err != nil {
		return err
	}

	// Check for JP2 signature
	if len(magic) >= 12 &&
		magic[0] == 0x00 && magic[1] == 0x00 && magic[2] == 0x00 && magic[3] == 0x0C &&
		magic[4] == 'j' && magic[5] == 'P' && magic[6] == ' ' && magic[7] == ' ' {
		d.format = FormatJP2
		return d.readJP2()
	}

	// Check for J2K codestream (SOC marker)
	if len(magic) >= 2 && magic[0] == 0xFF && magic[1] == 0x4F {
		d.format = FormatJ2K
		return d.readJ2K()
	}

	return fmt.Errorf("unrecognized file format")
}

// readJP2 reads a JP2 file.
func (d *decoder) readJP2() error {
	boxReader := box.NewReader(d.r)

	for {
		b, err := boxReader.ReadBox()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch b.Type {
		case box.TypeJP2Signature:
			// Verify signature
			if len(b.Contents) < 4 ||
				b.Contents[0] != 0x0D || b.Contents[1] != 0x0A ||
				b.Contents[2] != 0x87 || b.Contents[3] != 0x0A {
				return fmt.Errorf("invalid JP2 signature")
			}

		case box.TypeFileType:
			// Parse file type box
			ftyp := &box.FileTypeBox{}
			if err := ftyp.Parse(b.Contents); err != nil {
				return err
			}

		case box.TypeJP2Header:
			// Parse JP2 header
			var err error
			d.jp2Header, err = box.ParseJP2Header(b.Contents)
			if err != nil {
				return err
			}

		case box.TypeUUID:
			id, _, err := box.ParseUUIDBox(b.Contents)
			if err == nil {
				d.codestreamID = id
			}

		case box.TypeContCodestream:
			// Store codestream for later parsing
			d.codestream = b.Contents
			return nil
		}
	}

	if d.codestream == nil {
		return fmt.Errorf("no codestream found in JP2 file")
	}
	return nil
}

// readJ2K reads a raw J2K codestream.
func (d *decoder) readJ2K() error {
	// Read entire codestream
	data, err := io.ReadAll(d.r)
	if err != nil {
		return err
	}
	d.codestream = data
	return nil
}

// parseCodestream parses the codestream header.
func (d *decoder) parseCodestream() error {
	if d.codestream == nil {
		return fmt.Errorf("no codestream available")
	}

	br := &byteReader{data: d.codestream}
	parser := codestream.NewParser(br)
	header, err := parser.ReadHeader()
	if err != nil {
		return err
	}
	d.header = header
	d.tileReader = br
	return nil
}

// decodeTiles decodes all tiles and assembles the output image.
func (d *decoder) decodeTiles(cfg *Config) (image.Image, error) {
	h := d.header

	// decodeTile always reconstructs at the codestream's full resolution,
	// since the canvas tree it builds must match what the encoder used;
	// cfg.ReduceResolution is applied as a post-decode subsample instead
	// of shrinking the tree, which would desync it from the packets on
	// the wire.
	width := int(h.ImageWidth - h.ImageXOffset)
	height := int(h.ImageHeight - h.ImageYOffset)

	// Create output image based on number of components
	numComp := int(h.NumComponents)
	if numComp == 0 || len(h.ComponentInfo) == 0 {
		return nil, fmt.Errorf("invalid image: no components")
	}
	precision := h.ComponentInfo[0].Precision()
	signed := h.ComponentInfo[0].IsSigned()

	// Allocate component data
	componentData := make([][]int32, numComp)
	for c := 0; c < numComp; c++ {
		componentData[c] = make([]int32, width*height)
	}

	// Decode each tile
	numTiles := int(h.NumTilesX * h.NumTilesY)

	for tileIdx := 0; tileIdx < numTiles; tileIdx++ {
		if err := d.decodeTile(tileIdx, componentData, width, height, cfg); err != nil {
			return nil, fmt.Errorf("decoding tile %d: %w", tileIdx, err)
		}
	}

	// Apply inverse MCT if needed
	if h.CodingStyle.MultipleComponentXf != 0 && numComp >= 3 {
		if h.CodingStyle.IsReversible() {
			mct.InverseRCT(componentData[0], componentData[1], componentData[2])
		} else {
			// Convert to float for ICT
			compFloat := make([][]float64, 3)
			for c := 0; c < 3; c++ {
				compFloat[c] = make([]float64, len(componentData[c]))
				for i, v := range componentData[c] {
					compFloat[c][i] = float64(v)
				}
			}
			mct.InverseICT(compFloat[0], compFloat[1], compFloat[2])
			for c := 0; c < 3; c++ {
				for i, v := range compFloat[c] {
					componentData[c][i] = int32(v + 0.5)
				}
			}
		}
	}

	// Apply DC level shift
	for c := 0; c < numComp; c++ {
		if !h.ComponentInfo[c].IsSigned() {
			mct.DCLevelShiftInverse(componentData[c], h.ComponentInfo[c].Precision())
		}
	}

	// Apply color space conversion if needed
	if d.jp2Header != nil && d.jp2Header.ColorSpec != nil {
		cs := d.getColorSpace()
		if conv := getColorConversion(cs); conv != nil {
			conv(componentData, precision)
		}
	}

	if cfg != nil && cfg.ReduceResolution > 0 {
		componentData, width, height = subsampleComponents(componentData, width, height, cfg.ReduceResolution)
	}

	// Create output image
	return d.createImage(componentData, width, height, numComp, precision, signed)
}

// subsampleComponents point-samples each component down by 2^levels,
// matching the resolution a reduced-resolution decode would nominally
// produce by simply dropping detail subbands rather than decoding them.
func subsampleComponents(componentData [][]int32, width, height, levels int) ([][]int32, int, int) {
	dstW, dstH := width, height
	for i := 0; i < levels; i++ {
		dstW = (dstW + 1) / 2
		dstH = (dstH + 1) / 2
	}
	scale := 1 << uint(levels)
	out := make([][]int32, len(componentData))
	for c, src := range componentData {
		dst := make([]int32, dstW*dstH)
		for y := 0; y < dstH; y++ {
			for x := 0; x < dstW; x++ {
				sx, sy := x*scale, y*scale
				if sx >= width {
					sx = width - 1
				}
				if sy >= height {
					sy = height - 1
				}
				dst[y*dstW+x] = src[sy*width+sx]
			}
		}
		out[c] = dst
	}
	return out, dstW, dstH
}

// decodeBlock accumulates a codeblock's decoded segments across however
// many layers' packets touch it before tier1.DecodeSegments runs once at
// the end, mirroring encodeTile's one-shot-per-codeblock tier-1 call.
type decodeBlock struct {
	segs []tier1.Segment
	zb   int
}

// decodeTile parses one tile-part's self-delimited tier-2 packets (the
// framing encodeTile produced: uint32 headerLen|header|uint32 bodyLen|
// body, one framed chunk per orientation within each piter PacketID),
// tier-1 decodes every codeblock they touch, dequantizes the irreversible
// path, applies the inverse wavelet transform, and writes the
// reconstructed samples into componentData.
func (d *decoder) decodeTile(tileIdx int, componentData [][]int32, imgWidth, imgHeight int, cfg *Config) error {
	h := d.header

	if tileIdx > 0 {
		marker, err := d.readTileMarker()
		if err != nil {
			return fmt.Errorf("reading SOT marker: %w", err)
		}
		if codestream.Marker(marker) != codestream.SOT {
			return fmt.Errorf("expected SOT marker, got 0x%04X", marker)
		}
	}

	sotBody := make([]byte, 10)
	if _, err := io.ReadFull(d.tileReader, sotBody); err != nil {
		return fmt.Errorf("reading SOT body: %w", err)
	}
	psot := binary.BigEndian.Uint32(sotBody[4:8])

	sodMarker, err := d.readTileMarker()
	if err != nil {
		return fmt.Errorf("reading SOD marker: %w", err)
	}
	if codestream.Marker(sodMarker) != codestream.SOD {
		return fmt.Errorf("expected SOD marker, got 0x%04X", sodMarker)
	}

	if psot < 14 {
		return fmt.Errorf("invalid tile-part length %d", psot)
	}
	tileData := make([]byte, psot-14)
	if _, err := io.ReadFull(d.tileReader, tileData); err != nil {
		return fmt.Errorf("reading tile data: %w", err)
	}

	numLevels := int(h.CodingStyle.NumDecompositions)
	cbWidthExp := int(h.CodingStyle.CodeBlockWidthExp) + 2
	cbHeightExp := int(h.CodingStyle.CodeBlockHeightExp) + 2
	style := canvas.CodeBlockStyle(h.CodingStyle.CodeBlockStyle)
	numLayers := int(h.CodingStyle.NumLayers)
	if numLayers <= 0 {
		numLayers = 1
	}
	reversible := h.CodingStyle.IsReversible()
	precision := h.ComponentInfo[0].Precision()

	cp := &canvas.CodingParams{
		Reversible:         reversible,
		NumDecompositions:  numLevels,
		CodeBlockWidthExp:  cbWidthExp,
		CodeBlockHeightExp: cbHeightExp,
		CodeBlockStyle:     style,
		NumLayers:          numLayers,
	}

	numComp := len(componentData)
	components := make([]canvas.ComponentGeometry, numComp)
	for c := range components {
		components[c] = canvas.ComponentGeometry{Grid: canvas.Rect{X0: 0, Y0: 0, X1: imgWidth, Y1: imgHeight}, DX: 1, DY: 1}
	}
	imageRect := canvas.Rect{X0: 0, Y0: 0, X1: imgWidth, Y1: imgHeight}
	tile := canvas.BuildTile(imageRect, 0, 0, imgWidth, imgHeight, 0, 0, tileIdx, components, cp)

	precincts := make(map[subbandKey]*tier2.PrecinctState)
	blocks := make(map[subbandKey]map[int]*decodeBlock)

	for ci, tc := range tile.Components {
		for ri, res := range tc.Resolutions {
			for _, orient := range orientationsForResolution(ri) {
				sb := res.Subbands[orient]
				gridW, gridH := sb.GridDims()
				if gridW == 0 || gridH == 0 {
					continue
				}
				key := subbandKey{comp: ci, res: ri, orient: orient}
				precincts[key] = tier2.NewPrecinctState(gridW, gridH, style)
				blocks[key] = make(map[int]*decodeBlock, gridW*gridH)
			}
		}
	}

	progOrder := canvas.ProgressionOrder(h.CodingStyle.ProgressionOrder)
	rec := canvas.ProgressionRecord{
		LayerHi:      numLayers,
		ResolutionHi: len(tile.Components[0].Resolutions),
		ComponentHi:  numComp,
		Order:        progOrder,
	}
	it := piter.New(tile, numLayers, rec)

	offset := 0
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

			header, body, n, err := readFramedPacket(tileData[offset:])
			if err != nil {
				return fmt.Errorf("reading packet (comp=%d res=%d orient=%d layer=%d): %w",
					id.Component, id.Resolution, orient, id.Layer, err)
			}
			offset += n

			parsed, err := tier2.DecodePacketHeader(bitio.NewReader(bytes.NewReader(header)), ps, id.Layer)
			if err != nil {
				return fmt.Errorf("decoding packet header (comp=%d res=%d orient=%d layer=%d): %w",
					id.Component, id.Resolution, orient, id.Layer, err)
			}

			bodyOffset := 0
			blockMap := blocks[key]
			for _, pb := range parsed {
				if !pb.Included {
					continue
				}
				total := 0
				for _, s := range pb.SegmentLengths {
					total += s
				}
				if bodyOffset+total > len(body) {
					return fmt.Errorf("packet body too short for block %d", pb.Index)
				}
				data := body[bodyOffset : bodyOffset+total]
				bodyOffset += total

				db, ok := blockMap[pb.Index]
				if !ok {
					db = &decodeBlock{}
					blockMap[pb.Index] = db
				}
				if pb.FirstInclusion {
					db.zb = pb.Zb
				}
				if pb.NewPasses > 0 {
					db.segs = append(db.segs, tier1.Segment{Data: data, NumPasses: pb.NewPasses})
				}
			}
		}
	}

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
				ox, oy := subbandOrigin(imgWidth, imgHeight, numLevels, ri, orient)
				bandType := bandTypeOf(orient)
				numBPS := nominalMaxBitplanes(precision, level)

				for idx := 0; idx < gridW*gridH; idx++ {
					cb, err := sb.Codeblock(idx)
					if err != nil {
						return fmt.Errorf("building codeblock %d: %w", idx, err)
					}
					w, h2 := cb.Rect.Width(), cb.Rect.Height()
					if w <= 0 || h2 <= 0 {
						continue
					}
					db := blocks[key][idx]
					if db == nil || len(db.segs) == 0 {
						continue
					}

					blockBPS := numBPS - db.zb
					if blockBPS < 0 {
						blockBPS = 0
					}

					t1 := tier1.GetT1(w, h2)
					coeffs := t1.DecodeSegments(db.segs, blockBPS, bandType)
					tier1.PutT1(t1)

					bx0, by0 := ox+cb.Rect.X0, oy+cb.Rect.Y0
					if reversible {
						writeRegion(componentData[ci], imgWidth, bx0, by0, w, h2, coeffs)
					} else {
						dequantCodeblock(componentData[ci], imgWidth, bx0, by0, w, h2, coeffs, level, orient)
					}
				}
			}
		}
	}

	for c := 0; c < numComp && c < len(tile.Components); c++ {
		if reversible {
			dwt.ReconstructMultiLevel53(componentData[c], imgWidth, imgHeight, numLevels)
			continue
		}
		dataFloat := make([]float64, imgWidth*imgHeight)
		for i, v := range componentData[c] {
			dataFloat[i] = float64(v)
		}
		dwt.ReconstructMultiLevel97(dataFloat, imgWidth, imgHeight, numLevels)
		for i, v := range dataFloat {
			if v >= 0 {
				componentData[c][i] = int32(v + 0.5)
			} else {
				componentData[c][i] = int32(v - 0.5)
			}
		}
	}

	return nil
}

// dequantCodeblock dequantizes a decoded codeblock's integer coefficients
// with the same per-subband stepsize codeblockData derived them with,
// then rounds back to int32 and writes them into buf. componentData
// stays an int32 buffer end to end; the float precision only exists
// transiently per codeblock here rather than across a whole parallel
// float buffer for the tile.
func dequantCodeblock(buf []int32, stride, x0, y0, w, h int, coeffs []int32, level int, orient canvas.Orientation) {
	step := mct.DeriveStepsize(mct.SubbandNormGain(level, orient, false), false, quantGuardBits)
	floats := make([]float64, len(coeffs))
	mct.Dequantize(coeffs, floats, step, false)
	rounded := make([]int32, len(floats))
	for i, v := range floats {
		if v >= 0 {
			rounded[i] = int32(v + 0.5)
		} else {
			rounded[i] = int32(v - 0.5)
		}
	}
	writeRegion(buf, stride, x0, y0, w, h, rounded)
}

// readTileMarker reads one 2-byte marker tag from d.tileReader.
func (d *decoder) readTileMarker() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(d.tileReader, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// readFramedPacket parses one appendFramedPacket-framed chunk from the
// front of buf, returning the header slice, body slice, and the total
// number of bytes consumed.
func readFramedPacket(buf []byte) (header, body []byte, n int, err error) {
	if len(buf) < 4 {
		return nil, nil, 0, fmt.Errorf("truncated packet framing")
	}
	headerLen := binary.BigEndian.Uint32(buf[0:4])
	pos := 4 + int(headerLen)
	if pos > len(buf) {
		return nil, nil, 0, fmt.Errorf("truncated packet header")
	}
	header = buf[4:pos]
	if pos+4 > len(buf) {
		return nil, nil, 0, fmt.Errorf("truncated packet body length")
	}
	bodyLen := binary.BigEndian.Uint32(buf[pos : pos+4])
	pos += 4
	if pos+int(bodyLen) > len(buf) {
		return nil, nil, 0, fmt.Errorf("truncated packet body")
	}
	body = buf[pos : pos+int(bodyLen)]
	pos += int(bodyLen)
	return header, body, pos, nil
}

// createImage creates the output image from component data.
func (d *decoder) createImage(
	componentData [][]int32,
	width, height int,
	numComp int,
	precision int,
	signed bool,
) (image.Image, error) {
	// Determine scaling factor
	maxVal := int32((1 << precision) - 1)

	switch numComp {
	case 1:
		// Grayscale
		if precision <= 8 {
			img := image.NewGray(image.Rect(0, 0, width, height))
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					idx := y*width + x
					v := componentData[0][idx]
					if v < 0 {
						v = 0
					}
					if v > maxVal {
						v = maxVal
					}
					// Scale to 8-bit
					if precision != 8 {
						v = v * 255 / maxVal
					}
					img.SetGray(x, y, color.Gray{Y: uint8(v)})
				}
			}
			return img, nil
		}
		// 16-bit grayscale
		img := image.NewGray16(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				idx := y*width + x
				v := componentData[0][idx]
				if v < 0 {
					v = 0
				}
				if v > maxVal {
					v = maxVal
				}
				// Scale to 16-bit
				v = v * 65535 / maxVal
				img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
			}
		}
		return img, nil

	case 3:
		// RGB
		if precision <= 8 {
			img := image.NewRGBA(image.Rect(0, 0, width, height))
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					idx := y*width + x
					r := componentData[0][idx]
					g := componentData[1][idx]
					b := componentData[2][idx]

					// Clamp values
					r = clampInt32(r, 0, maxVal)
					g = clampInt32(g, 0, maxVal)
					b = clampInt32(b, 0, maxVal)

					// Scale to 8-bit
					if precision != 8 {
						r = r * 255 / maxVal
						g = g * 255 / maxVal
						b = b * 255 / maxVal
					}

					img.SetRGBA(x, y, color.RGBA{
						R: uint8(r),
						G: uint8(g),
						B: uint8(b),
						A: 255,
					})
				}
			}
			return img, nil
		}
		// 16-bit RGB
		img := image.NewRGBA64(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				idx := y*width + x
				r := componentData[0][idx]
				g := componentData[1][idx]
				b := componentData[2][idx]

				r = clampInt32(r, 0, maxVal)
				g = clampInt32(g, 0, maxVal)
				b = clampInt32(b, 0, maxVal)

				// Scale to 16-bit
				r = r * 65535 / maxVal
				g = g * 65535 / maxVal
				b = b * 65535 / maxVal

				img.SetRGBA64(x, y, color.RGBA64{
					R: uint16(r),
					G: uint16(g),
					B: uint16(b),
					A: 65535,
				})
			}
		}
		return img, nil

	case 4:
		// RGBA
		if precision <= 8 {
			img := image.NewRGBA(image.Rect(0, 0, width, height))
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					idx := y*width + x
					r := clampInt32(componentData[0][idx], 0, maxVal)
					g := clampInt32(componentData[1][idx], 0, maxVal)
					b := clampInt32(componentData[2][idx], 0, maxVal)
					a := clampInt32(componentData[3][idx], 0, maxVal)

					if precision != 8 {
						r = r * 255 / maxVal
						g = g * 255 / maxVal
						b = b * 255 / maxVal
						a = a * 255 / maxVal
					}

					img.SetRGBA(x, y, color.RGBA{
						R: uint8(r),
						G: uint8(g),
						B: uint8(b),
						A: uint8(a),
					})
				}
			}
			return img, nil
		}
		// 16-bit RGBA
		img := image.NewRGBA64(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				idx := y*width + x
				r := clampInt32(componentData[0][idx], 0, maxVal)
				g := clampInt32(componentData[1][idx], 0, maxVal)
				b := clampInt32(componentData[2][idx], 0, maxVal)
				a := clampInt32(componentData[3][idx], 0, maxVal)

				r = r * 65535 / maxVal
				g = g * 65535 / maxVal
				b = b * 65535 / maxVal
				a = a * 65535 / maxVal

				img.SetRGBA64(x, y, color.RGBA64{
					R: uint16(r),
					G: uint16(g),
					B: uint16(b),
					A: uint16(a),
				})
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("unsupported number of components: %d", numComp)
	}
}

// Helper function
func clampInt32(v, min, max int32) int32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// byteReader wraps a byte slice as an io.Reader.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
