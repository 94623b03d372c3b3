package slicer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Faultbox/meshcuber/pkg/formats"
	"github.com/Faultbox/meshcuber/pkg/math"
	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// ErrGridMismatch is returned when metadata of different grids are combined.
var ErrGridMismatch = errors.New("metadata grid size mismatch")

// Metadata describes the output of a slicing run.
type Metadata struct {
	RunID string `json:"runId"`

	// CubeExists[x][y][z] reports whether cell (x, y, z) holds geometry.
	CubeExists [][][]bool `json:"cubeExists"`
	// Bitmap is CubeExists as a base64 existence bitmap.
	Bitmap string `json:"bitmap"`

	WorldBounds        math.Extent `json:"worldBounds"`
	VirtualWorldBounds math.Extent `json:"virtualWorldBounds"`
	SetSize            [3]int      `json:"setSize"`
	TextureSetSize     [2]int      `json:"textureSetSize"`
	VertexCount        int         `json:"vertexCount"`
}

// NewMetadata returns metadata for a grid with no existing cells.
func NewMetadata(runID string, setSize [3]int, textureSetSize [2]int, world, virtual math.Extent, vertexCount int) *Metadata {
	exists := make([][][]bool, setSize[0])
	for x := range exists {
		exists[x] = make([][]bool, setSize[1])
		for y := range exists[x] {
			exists[x][y] = make([]bool, setSize[2])
		}
	}

	return &Metadata{
		RunID:              runID,
		CubeExists:         exists,
		WorldBounds:        world,
		VirtualWorldBounds: virtual,
		SetSize:            setSize,
		TextureSetSize:     textureSetSize,
		VertexCount:        vertexCount,
	}
}

// SetExists records whether c holds geometry.
func (md *Metadata) SetExists(c mesh.Cell, exists bool) {
	md.CubeExists[c.X][c.Y][c.Z] = exists
}

// Exists reports whether c holds geometry.
func (md *Metadata) Exists(c mesh.Cell) bool {
	return md.CubeExists[c.X][c.Y][c.Z]
}

// Count returns the number of cells holding geometry.
func (md *Metadata) Count() int {
	n := 0
	for _, c := range md.Keys() {
		if md.Exists(c) {
			n++
		}
	}
	return n
}

// Keys returns every cell of the grid.
func (md *Metadata) Keys() []mesh.Cell {
	return formats.GridCells(md.SetSize[0], md.SetSize[1], md.SetSize[2])
}

// Existence returns CubeExists as a map.
func (md *Metadata) Existence() map[mesh.Cell]bool {
	keys := md.Keys()
	out := make(map[mesh.Cell]bool, len(keys))
	for _, c := range keys {
		out[c] = md.Exists(c)
	}
	return out
}

// EncodeExistence returns CubeExists as a base64 existence bitmap.
func (md *Metadata) EncodeExistence() string {
	return formats.EncodeBitmap(md.Keys(), md.Existence())
}

// MergeExistence marks every cell set in a bitmap produced for the same grid,
// typically by another worker.
func (md *Metadata) MergeExistence(encoded string) error {
	exists, err := formats.DecodeBitmap(encoded, md.Keys())
	if err != nil {
		return err
	}
	for c, ok := range exists {
		if ok {
			md.SetExists(c, true)
		}
	}
	md.Bitmap = md.EncodeExistence()
	return nil
}

// Merge combines the existence of other into md.
func (md *Metadata) Merge(other *Metadata) error {
	if md.SetSize != other.SetSize {
		return fmt.Errorf("%w: %v and %v", ErrGridMismatch, md.SetSize, other.SetSize)
	}
	return md.MergeExistence(other.EncodeExistence())
}

// Save writes md as indented JSON.
func (md *Metadata) Save(path string) error {
	md.Bitmap = md.EncodeExistence()

	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads metadata written by Save.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	if len(md.CubeExists) != md.SetSize[0] {
		return nil, fmt.Errorf("%w: %d rows for set size %v", ErrGridMismatch, len(md.CubeExists), md.SetSize)
	}
	for _, col := range md.CubeExists {
		if len(col) != md.SetSize[1] {
			return nil, fmt.Errorf("%w: set size %v", ErrGridMismatch, md.SetSize)
		}
		for _, row := range col {
			if len(row) != md.SetSize[2] {
				return nil, fmt.Errorf("%w: set size %v", ErrGridMismatch, md.SetSize)
			}
		}
	}
	return &md, nil
}
