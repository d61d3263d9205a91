package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"brickcube.ai/internal/sim/grid"
)

// EncodeOccupancy encodes a flat occupancy slice into base64(varint pairs).
// The pairs are (piece_id, run_len) repeated; piece id 0 is an empty cell.
func EncodeOccupancy(ids []grid.PieceID) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(ids) {
		id := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == id; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(id))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeOccupancy reverses EncodeOccupancy. The decoded length must equal
// want, which bounds the allocation for untrusted input.
func DecodeOccupancy(b64 string, want int) ([]grid.PieceID, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]grid.PieceID, 0, want)
	for i := 0; i < len(raw); {
		id, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if id > 0xFFFFFFFF {
			return nil, fmt.Errorf("piece id too large: %d", id)
		}
		if run == 0 || run > uint64(want-len(out)) {
			return nil, fmt.Errorf("run of %d exceeds %d cells", run, want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, grid.PieceID(id))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("decoded %d cells, want %d", len(out), want)
	}
	return out, nil
}
