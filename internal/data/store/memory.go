package store

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/thehyve/single-cell-explorer/internal/data/frame"
	"github.com/thehyve/single-cell-explorer/internal/fetch"
)

// MemorySource serves a Bundle from memory.
type MemorySource struct {
	md      Metadata
	layouts map[string]*frame.Frame
	obs     map[string]*frame.Frame
}

// NewMemorySource normalizes the layouts of b and serves them.
func NewMemorySource(b *Bundle) (*MemorySource, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	s := &MemorySource{
		md:      b.metadata(),
		layouts: make(map[string]*frame.Frame, len(b.Layouts)),
		obs:     make(map[string]*frame.Frame, len(b.Obs)),
	}
	for i, l := range b.Layouts {
		x := append([]float32(nil), l.X...)
		y := append([]float32(nil), l.Y...)
		NormalizeLayout(x, y)
		dims := s.md.Layouts[i].Dims
		f, err := frame.New(frame.NewNumeric(dims[0], x), frame.NewNumeric(dims[1], y))
		if err != nil {
			return nil, err
		}
		s.layouts[l.Key] = f
	}
	for _, c := range b.Obs {
		f, err := frame.New(c)
		if err != nil {
			return nil, err
		}
		s.obs[c.Name] = f
	}
	return s, nil
}

func (s *MemorySource) Fetch(ctx context.Context, domain fetch.Domain, key string) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		f  *frame.Frame
		ok bool
	)
	switch domain {
	case fetch.DomainEmbedding:
		f, ok = s.layouts[key]
	case fetch.DomainObs:
		f, ok = s.obs[key]
	}
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", domain, key, ErrNotFound)
	}
	return f, nil
}

func (s *MemorySource) NumCells() int         { return s.md.NCells }
func (s *MemorySource) Obs() []ObsInfo        { return s.md.Obs }
func (s *MemorySource) DefaultLayout() string { return s.md.DefaultLayout }

func (s *MemorySource) Layouts() []string {
	keys := make([]string, len(s.md.Layouts))
	for i, l := range s.md.Layouts {
		keys[i] = l.Key
	}
	return keys
}

// Synthetic generates a clustered demo dataset of n cells: "umap" and
// "pca" layouts, a "cell_type" category and an "n_genes" count with a few
// missing values.
func Synthetic(n int, seed int64) *Bundle {
	rng := rand.New(rand.NewSource(seed))
	types := []string{"T cell", "B cell", "NK cell", "Monocyte", "Dendritic"}
	centers := make([][2]float64, len(types))
	for i := range centers {
		angle := 2 * math.Pi * float64(i) / float64(len(types))
		centers[i] = [2]float64{8 * math.Cos(angle), 8 * math.Sin(angle)}
	}

	umap := Layout{Key: "umap", X: make([]float32, n), Y: make([]float32, n)}
	pca := Layout{Key: "pca", X: make([]float32, n), Y: make([]float32, n)}
	codes := make([]int32, n)
	genes := make([]float32, n)
	for i := 0; i < n; i++ {
		c := rng.Intn(len(types))
		codes[i] = int32(c)
		umap.X[i] = float32(centers[c][0] + rng.NormFloat64())
		umap.Y[i] = float32(centers[c][1] + rng.NormFloat64())
		pca.X[i] = float32(float64(c) + 0.6*rng.NormFloat64())
		pca.Y[i] = float32(2 * rng.NormFloat64())
		genes[i] = float32(500 + 200*c + rng.Intn(400))
		if rng.Float64() < 0.01 {
			genes[i] = float32(math.NaN())
		}
	}
	return &Bundle{
		Name:    "synthetic",
		Layouts: []Layout{umap, pca},
		Obs: []*frame.Column{
			frame.NewCategorical("cell_type", codes, types),
			frame.NewNumeric("n_genes", genes),
		},
		DefaultLayout: "umap",
	}
}

// OpenDataset opens the dataset directory at path. An empty path serves a
// synthetic dataset of demoCells cells instead.
func OpenDataset(path string, demoCells int) (Dataset, error) {
	if path != "" {
		r, err := Open(path)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	if demoCells <= 0 {
		return nil, fmt.Errorf("dataset needs a path or a positive demo_cells")
	}
	s, err := NewMemorySource(Synthetic(demoCells, 1))
	if err != nil {
		return nil, err
	}
	return s, nil
}
