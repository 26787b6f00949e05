package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/thehyve/single-cell-explorer/internal/data/frame"
)

// Layout is one raw 2D embedding.
type Layout struct {
	Key  string
	X, Y []float32
}

// Bundle is an in-memory dataset ready to be written or served.
type Bundle struct {
	Name          string
	Layouts       []Layout
	Obs           []*frame.Column
	DefaultLayout string
}

// NumCells returns the number of cells, taken from the first layout.
func (b *Bundle) NumCells() int {
	if len(b.Layouts) == 0 {
		return 0
	}
	return len(b.Layouts[0].X)
}

// Validate checks that every array has one value per cell.
func (b *Bundle) Validate() error {
	n := b.NumCells()
	for _, l := range b.Layouts {
		if len(l.X) != n || len(l.Y) != n {
			return fmt.Errorf("layout %s has %d/%d values, want %d", l.Key, len(l.X), len(l.Y), n)
		}
	}
	for _, c := range b.Obs {
		if c.Len() != n {
			return fmt.Errorf("obs column %s has %d values, want %d", c.Name, c.Len(), n)
		}
	}
	return nil
}

func (b *Bundle) metadata() Metadata {
	md := Metadata{
		FormatVersion: FormatVersion,
		DatasetName:   b.Name,
		NCells:        b.NumCells(),
		DefaultLayout: b.DefaultLayout,
	}
	for _, l := range b.Layouts {
		md.Layouts = append(md.Layouts, LayoutInfo{Key: l.Key, Dims: [2]string{l.Key + "_0", l.Key + "_1"}})
	}
	for _, c := range b.Obs {
		info := ObsInfo{Name: c.Name, Type: "float32"}
		if c.Kind == frame.KindCategorical {
			info.Type = "category"
			info.Values = c.Categories
		}
		md.Obs = append(md.Obs, info)
	}
	if md.DefaultLayout == "" && len(md.Layouts) > 0 {
		md.DefaultLayout = md.Layouts[0].Key
	}
	return md
}

// Write stores b as a dataset directory at dir.
func Write(dir string, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	write := func(rel string, raw []byte) error {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, encoder.EncodeAll(raw, nil), 0o644)
	}

	md := b.metadata()
	for i, l := range b.Layouts {
		dims := md.Layouts[i].Dims
		if err := write(filepath.Join("emb", l.Key, dims[0]+".zst"), encodeFloat32(l.X)); err != nil {
			return fmt.Errorf("failed to write layout %s: %w", l.Key, err)
		}
		if err := write(filepath.Join("emb", l.Key, dims[1]+".zst"), encodeFloat32(l.Y)); err != nil {
			return fmt.Errorf("failed to write layout %s: %w", l.Key, err)
		}
	}
	for _, c := range b.Obs {
		raw := encodeFloat32(c.Numbers)
		if c.Kind == frame.KindCategorical {
			raw = encodeInt32(c.Codes)
		}
		if err := write(filepath.Join("obs", c.Name+".zst"), raw); err != nil {
			return fmt.Errorf("failed to write obs column %s: %w", c.Name, err)
		}
	}

	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644)
}

func encodeFloat32(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func encodeInt32(values []int32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(v))
	}
	return out
}
