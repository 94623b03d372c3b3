package formats

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"

	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// ErrTruncatedBitmap is returned when a bitmap holds fewer bits than keys.
var ErrTruncatedBitmap = errors.New("existence bitmap shorter than key set")

// SortCells orders cells by X, then Y, then Z, in place.
func SortCells(cells []mesh.Cell) {
	slices.SortFunc(cells, func(a, b mesh.Cell) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
}

// EncodeBitmap packs exists[key] for every key, in sorted key order, eight
// bits per byte with the first key in the lowest bit, and returns it base64
// encoded.
func EncodeBitmap(keys []mesh.Cell, exists map[mesh.Cell]bool) string {
	sorted := slices.Clone(keys)
	SortCells(sorted)

	bits := make([]byte, (len(sorted)+7)/8)
	for i, key := range sorted {
		if exists[key] {
			bits[i/8] |= 1 << (i % 8)
		}
	}
	return base64.StdEncoding.EncodeToString(bits)
}

// DecodeBitmap reverses EncodeBitmap. keys must be the set used to encode.
func DecodeBitmap(encoded string, keys []mesh.Cell) (map[mesh.Cell]bool, error) {
	bits, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding bitmap: %w", err)
	}

	sorted := slices.Clone(keys)
	SortCells(sorted)
	if len(bits) < (len(sorted)+7)/8 {
		return nil, fmt.Errorf("%w: %d bytes for %d keys", ErrTruncatedBitmap, len(bits), len(sorted))
	}

	out := make(map[mesh.Cell]bool, len(sorted))
	for i, key := range sorted {
		out[key] = bits[i/8]&(1<<(i%8)) != 0
	}
	return out, nil
}

// GridCells returns every cell of an x by y by z grid.
func GridCells(x, y, z int) []mesh.Cell {
	out := make([]mesh.Cell, 0, x*y*z)
	for i := 0; i < x; i++ {
		for j := 0; j < y; j++ {
			for k := 0; k < z; k++ {
				out = append(out, mesh.Cell{X: i, Y: j, Z: k})
			}
		}
	}
	return out
}
