package tier2

import (
	"bytes"
	"fmt"

	"github.com/mrjoshuak/go-jpeg2000/v2/internal/bitio"
)

// maxPLTSegmentBytes bounds a single PLT marker segment's payload so the
// 16-bit marker-segment length field (spec §6 codestream framing) never
// overflows; a table spanning more packets than this splits across
// multiple PLT segments indexed by Zplt.
const maxPLTSegmentBytes = 65533

// EncodePLT comma-encodes packetLengths (one entry per packet, in
// packet-sequence order within the tile-part) into one or more PLT
// marker segment payloads (spec §4.6 "PLT spans multiple PLT marker
// segments indexed by a single-byte Zplt; a single packet length never
// spans two PLT segments"). Each returned []byte is one segment's
// payload, beginning with its Zplt byte.
func EncodePLT(packetLengths []uint32) [][]byte {
	var segments [][]byte
	var cur bytes.Buffer
	zplt := byte(0)
	cur.WriteByte(zplt)

	for _, length := range packetLengths {
		enc := bitio.EncodeCommaLength(length)
		if cur.Len()+len(enc) > maxPLTSegmentBytes {
			segments = append(segments, append([]byte(nil), cur.Bytes()...))
			zplt++
			cur.Reset()
			cur.WriteByte(zplt)
		}
		cur.Write(enc)
	}
	if cur.Len() > 1 || len(segments) == 0 {
		segments = append(segments, append([]byte(nil), cur.Bytes()...))
	}
	return segments
}

// DecodePLT reconstructs the ordered packet-length table from a PLT
// marker segment's payload (the Zplt byte plus comma-coded lengths).
// Concatenate segments in Zplt order and call once, or call per-segment
// and append the results — comma codes never span a segment boundary.
func DecodePLT(payload []byte) (zplt byte, lengths []uint32, err error) {
	if len(payload) == 0 {
		return 0, nil, fmt.Errorf("tier2: empty PLT segment")
	}
	zplt = payload[0]
	r := bitio.NewCommaLengthReader(bytes.NewReader(payload[1:]))
	for {
		v, err := r.ReadLength()
		if err != nil {
			break
		}
		lengths = append(lengths, v)
	}
	return zplt, lengths, nil
}

// EncodeTLM comma-encodes tilePartLengths (spec §4.6 TLM: per-tile-part
// byte length, codestream-wide) the same way EncodePLT encodes
// per-packet lengths within a tile.
func EncodeTLM(tilePartLengths []uint32) []byte {
	var buf bytes.Buffer
	w := bitio.NewCommaLengthWriter(&buf)
	for _, l := range tilePartLengths {
		_ = w.WriteLength(l)
	}
	return buf.Bytes()
}

// DecodeTLM is EncodeTLM's dual.
func DecodeTLM(payload []byte) ([]uint32, error) {
	r := bitio.NewCommaLengthReader(bytes.NewReader(payload))
	var lengths []uint32
	for {
		v, err := r.ReadLength()
		if err != nil {
			break
		}
		lengths = append(lengths, v)
	}
	return lengths, nil
}
