package api

import "sort"

// DatasetInfo contains information about a dataset for the API response.
type DatasetInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	NumCells int    `json:"n_cells"`
}

// DatasetRegistry holds the viewer sessions for all configured datasets.
type DatasetRegistry struct {
	sessions       map[string]*Session
	defaultDataset string
	datasetOrder   []string
	title          string
}

// NewDatasetRegistry creates a new dataset registry.
func NewDatasetRegistry(defaultDataset string, order []string, title string) *DatasetRegistry {
	return &DatasetRegistry{
		sessions:       make(map[string]*Session),
		defaultDataset: defaultDataset,
		datasetOrder:   order,
		title:          title,
	}
}

// Register adds a session for a dataset. Datasets missing from the
// configured order are appended to it.
func (r *DatasetRegistry) Register(datasetID string, s *Session) {
	if _, exists := r.sessions[datasetID]; !exists && !contains(r.datasetOrder, datasetID) {
		r.datasetOrder = append(r.datasetOrder, datasetID)
	}
	r.sessions[datasetID] = s
}

// Get returns the session for a dataset, or nil if not found.
func (r *DatasetRegistry) Get(datasetID string) *Session {
	return r.sessions[datasetID]
}

// Default returns the default dataset's session.
func (r *DatasetRegistry) Default() *Session {
	return r.sessions[r.defaultDataset]
}

// DefaultDatasetID returns the default dataset ID.
func (r *DatasetRegistry) DefaultDatasetID() string {
	return r.defaultDataset
}

// DatasetIDs returns all dataset IDs in config order.
func (r *DatasetRegistry) DatasetIDs() []string {
	return r.datasetOrder
}

// Title returns the configured site title.
func (r *DatasetRegistry) Title() string {
	if r.title != "" {
		return r.title
	}
	return "Single-Cell Explorer"
}

// Datasets returns dataset info for all registered datasets.
func (r *DatasetRegistry) Datasets() []DatasetInfo {
	infos := make([]DatasetInfo, 0, len(r.datasetOrder))
	for _, id := range r.datasetOrder {
		s := r.sessions[id]
		if s == nil {
			continue
		}
		infos = append(infos, DatasetInfo{
			ID:       id,
			Name:     id,
			NumCells: s.Dataset().NumCells(),
		})
	}
	return infos
}

// Close closes every session.
func (r *DatasetRegistry) Close() {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r.sessions[id].Close()
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
