// Package store reads per-cell layouts and metadata columns from a
// dataset directory of zstd-compressed little-endian arrays.
//
// Directory layout:
//
//	metadata.json
//	emb/<layout>/<dimension>.zst   float32 per cell
//	obs/<column>.zst               float32 (numeric) or int32 codes (category)
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/thehyve/single-cell-explorer/internal/data/frame"
	"github.com/thehyve/single-cell-explorer/internal/fetch"
)

// ErrNotFound is returned for unknown layouts and columns.
var ErrNotFound = errors.New("not found")

const FormatVersion = "1"

// Metadata describes a dataset directory.
type Metadata struct {
	FormatVersion string       `json:"format_version"`
	DatasetName   string       `json:"dataset_name"`
	NCells        int          `json:"n_cells"`
	Layouts       []LayoutInfo `json:"layouts"`
	Obs           []ObsInfo    `json:"obs"`
	DefaultLayout string       `json:"default_layout,omitempty"`
}

// LayoutInfo describes one 2D embedding.
type LayoutInfo struct {
	Key  string    `json:"key"`
	Dims [2]string `json:"dims"`
}

// ObsInfo describes one metadata column. Values is set for categorical
// columns.
type ObsInfo struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"` // "float32" or "category"
	Values []string `json:"values,omitempty"`
}

// Catalog lists what a dataset offers.
type Catalog interface {
	NumCells() int
	Layouts() []string
	Obs() []ObsInfo
	DefaultLayout() string
}

// Dataset is a source of render columns with a catalog.
type Dataset interface {
	fetch.Source
	Catalog
}

// Reader serves a dataset directory. Decoded frames are cached.
type Reader struct {
	basePath string
	metadata *Metadata
	mu       sync.RWMutex
	decoder  *zstd.Decoder
	frames   map[string]*frame.Frame
}

// Open opens a dataset directory.
func Open(basePath string) (*Reader, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	r := &Reader{
		basePath: basePath,
		decoder:  decoder,
		frames:   make(map[string]*frame.Frame),
	}
	if err := r.loadMetadata(); err != nil {
		decoder.Close()
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	return r, nil
}

func (r *Reader) loadMetadata() error {
	data, err := os.ReadFile(filepath.Join(r.basePath, "metadata.json"))
	if err != nil {
		return fmt.Errorf("failed to read metadata.json: %w", err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return fmt.Errorf("failed to parse metadata.json: %w", err)
	}
	if md.FormatVersion != "" && md.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported format version %q", md.FormatVersion)
	}
	if md.DefaultLayout == "" && len(md.Layouts) > 0 {
		md.DefaultLayout = md.Layouts[0].Key
	}
	r.metadata = &md
	return nil
}

// Metadata returns the dataset metadata.
func (r *Reader) Metadata() *Metadata { return r.metadata }

// NumCells returns the number of cells.
func (r *Reader) NumCells() int { return r.metadata.NCells }

// Layouts returns the layout keys.
func (r *Reader) Layouts() []string {
	keys := make([]string, len(r.metadata.Layouts))
	for i, l := range r.metadata.Layouts {
		keys[i] = l.Key
	}
	return keys
}

// Obs returns the metadata columns.
func (r *Reader) Obs() []ObsInfo { return r.metadata.Obs }

// DefaultLayout returns the layout shown first.
func (r *Reader) DefaultLayout() string { return r.metadata.DefaultLayout }

// Fetch returns a layout (two numeric columns normalized to [0,1]) or a
// single obs column.
func (r *Reader) Fetch(ctx context.Context, domain fetch.Domain, key string) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cacheKey := domain.String() + "/" + key

	r.mu.RLock()
	f, ok := r.frames[cacheKey]
	r.mu.RUnlock()
	if ok {
		return f, nil
	}

	var err error
	switch domain {
	case fetch.DomainEmbedding:
		f, err = r.loadLayout(key)
	case fetch.DomainObs:
		f, err = r.loadObs(key)
	default:
		err = fmt.Errorf("unknown domain %d", domain)
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if cached, ok := r.frames[cacheKey]; ok {
		f = cached
	} else {
		r.frames[cacheKey] = f
	}
	r.mu.Unlock()
	return f, nil
}

func (r *Reader) loadLayout(key string) (*frame.Frame, error) {
	var info *LayoutInfo
	for i := range r.metadata.Layouts {
		if r.metadata.Layouts[i].Key == key {
			info = &r.metadata.Layouts[i]
			break
		}
	}
	if info == nil {
		return nil, fmt.Errorf("layout %s: %w", key, ErrNotFound)
	}

	var dims [2][]float32
	for d, name := range info.Dims {
		raw, err := r.readArray(filepath.Join("emb", key, name+".zst"))
		if err != nil {
			return nil, fmt.Errorf("layout %s: %w", key, err)
		}
		values, err := decodeFloat32(raw, r.metadata.NCells)
		if err != nil {
			return nil, fmt.Errorf("layout %s dimension %s: %w", key, name, err)
		}
		dims[d] = values
	}
	NormalizeLayout(dims[0], dims[1])
	return frame.New(frame.NewNumeric(info.Dims[0], dims[0]), frame.NewNumeric(info.Dims[1], dims[1]))
}

func (r *Reader) loadObs(name string) (*frame.Frame, error) {
	var info *ObsInfo
	for i := range r.metadata.Obs {
		if r.metadata.Obs[i].Name == name {
			info = &r.metadata.Obs[i]
			break
		}
	}
	if info == nil {
		return nil, fmt.Errorf("obs column %s: %w", name, ErrNotFound)
	}

	raw, err := r.readArray(filepath.Join("obs", name+".zst"))
	if err != nil {
		return nil, fmt.Errorf("obs column %s: %w", name, err)
	}
	var col *frame.Column
	switch info.Type {
	case "category":
		codes, err := decodeInt32(raw, r.metadata.NCells)
		if err != nil {
			return nil, fmt.Errorf("obs column %s: %w", name, err)
		}
		col = frame.NewCategorical(name, codes, info.Values)
	case "float32", "":
		values, err := decodeFloat32(raw, r.metadata.NCells)
		if err != nil {
			return nil, fmt.Errorf("obs column %s: %w", name, err)
		}
		col = frame.NewNumeric(name, values)
	default:
		return nil, fmt.Errorf("obs column %s: unsupported type %q", name, info.Type)
	}
	return frame.New(col)
}

func (r *Reader) readArray(rel string) ([]byte, error) {
	compressed, err := os.ReadFile(filepath.Join(r.basePath, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", rel, ErrNotFound)
		}
		return nil, err
	}
	data, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress failed: %w", err)
	}
	return data, nil
}

// Close releases the decoder.
func (r *Reader) Close() {
	if r.decoder != nil {
		r.decoder.Close()
	}
}

func decodeFloat32(b []byte, n int) ([]float32, error) {
	if len(b) != 4*n {
		return nil, fmt.Errorf("expected %d bytes, got %d", 4*n, len(b))
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

func decodeInt32(b []byte, n int) ([]int32, error) {
	if len(b) != 4*n {
		return nil, fmt.Errorf("expected %d bytes, got %d", 4*n, len(b))
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// NormalizeLayout rescales x and y in place into [0,1], keeping the
// aspect ratio and centering the shorter axis. Non-finite values are
// left as they are.
func NormalizeLayout(x, y []float32) {
	xlo, xhi, okx := finiteRange(x)
	ylo, yhi, oky := finiteRange(y)
	if !okx || !oky {
		return
	}
	span := math.Max(xhi-xlo, yhi-ylo)
	if span == 0 {
		span = 1
	}
	xoff := (1 - (xhi-xlo)/span) / 2
	yoff := (1 - (yhi-ylo)/span) / 2
	for i, v := range x {
		x[i] = float32((float64(v)-xlo)/span + xoff)
	}
	for i, v := range y {
		y[i] = float32((float64(v)-ylo)/span + yoff)
	}
}

func finiteRange(values []float32) (lo, hi float64, ok bool) {
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if !ok {
			lo, hi, ok = f, f, true
			continue
		}
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	return lo, hi, ok
}
