// Package api provides HTTP handlers for the explorer server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/thehyve/single-cell-explorer/internal/cache"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/internal/selstore"
	"github.com/thehyve/single-cell-explorer/internal/transform"
	"github.com/thehyve/single-cell-explorer/pkg/colormap"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *DatasetRegistry
	Cache       *cache.Manager
	Selections  *selstore.Store // optional
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json"))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global datasets endpoint (not dataset-scoped)
	r.Get("/api/datasets", datasetsHandler(cfg.Registry))

	// Dataset-scoped routes: /d/{dataset}/...
	r.Route("/d/{dataset}", func(r chi.Router) {
		r.Use(datasetMiddleware(cfg.Registry))

		r.Get("/frame.png", frameHandler)

		r.Route("/api", func(r chi.Router) {
			r.Get("/metadata", metadataHandler)
			r.Get("/status", statusHandler)
			r.Get("/stats", statsHandler(cfg.Cache))
			r.Put("/view", viewHandler)
			r.Put("/mode", modeHandler)
			r.Post("/pointer", pointerHandler)
			r.Post("/cancel", cancelHandler)

			r.Get("/selection", selectionHandler)
			r.Put("/selection", setSelectionHandler)
			r.Delete("/selection", deselectHandler)

			r.Route("/selections", func(r chi.Router) {
				r.Get("/", selectionHistoryHandler(cfg.Selections))
				r.Get("/{selection_id}", selectionRecordHandler(cfg.Selections))
				r.Delete("/{selection_id}", selectionDeleteHandler(cfg.Selections))
			})
		})
	})

	return r
}

// Context key for dataset session
type ctxKey string

const datasetSessionKey ctxKey = "datasetSession"

// datasetMiddleware resolves the dataset from URL and injects its session into context.
func datasetMiddleware(registry *DatasetRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			datasetID := chi.URLParam(r, "dataset")
			s := registry.Get(datasetID)
			if s == nil {
				http.Error(w, "dataset not found: "+datasetID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), datasetSessionKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getSession(r *http.Request) *Session {
	if s, ok := r.Context().Value(datasetSessionKey).(*Session); ok {
		return s
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// datasetsHandler returns the list of available datasets.
func datasetsHandler(registry *DatasetRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"default":  registry.DefaultDatasetID(),
			"datasets": registry.Datasets(),
			"title":    registry.Title(),
		})
	}
}

// frameHandler renders the current view. Optional w and h query params
// resize the viewport first.
func frameHandler(w http.ResponseWriter, r *http.Request) {
	s := getSession(r)
	width, err := parseDimension(r.URL.Query().Get("w"))
	if err != nil {
		http.Error(w, "invalid w", http.StatusBadRequest)
		return
	}
	height, err := parseDimension(r.URL.Query().Get("h"))
	if err != nil {
		http.Error(w, "invalid h", http.StatusBadRequest)
		return
	}

	data, err := s.Frame(r.Context(), width, height)
	if err != nil {
		st := s.Graph().Status()
		if data == nil {
			if st.Error != "" {
				http.Error(w, st.Error, http.StatusBadGateway)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-Load-Error", st.Error)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func parseDimension(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 8192 {
		return 0, errors.New("dimension out of range")
	}
	return v, nil
}

func metadataHandler(w http.ResponseWriter, r *http.Request) {
	s := getSession(r)
	ds := s.Dataset()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset":        s.ID(),
		"n_cells":        ds.NumCells(),
		"layouts":        ds.Layouts(),
		"default_layout": ds.DefaultLayout(),
		"obs":            ds.Obs(),
		"colormaps":      colormap.Names(),
	})
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, getSession(r).Graph().Status())
}

func statsHandler(cm *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := getSession(r).Graph()
		stats := g.SyncStats()
		resp := map[string]interface{}{
			"position_uploads": stats.PositionUploads,
			"color_uploads":    stats.ColorUploads,
			"flag_uploads":     stats.FlagUploads,
			"redraws":          stats.Redraws,
		}
		if cm != nil {
			for k, v := range cm.Stats() {
				resp[k] = v
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// viewRequest changes what is shown. Absent fields are left as they are;
// an empty string clears color or highlight.
type viewRequest struct {
	Layout    *string `json:"layout"`
	Color     *string `json:"color"`
	Highlight *string `json:"highlight"`
	Label     *string `json:"label"`
}

func viewHandler(w http.ResponseWriter, r *http.Request) {
	s := getSession(r)
	var req viewRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	g := s.Graph()
	if req.Layout != nil {
		if *req.Layout == "" {
			http.Error(w, "layout must not be empty", http.StatusBadRequest)
			return
		}
		g.SetLayout(*req.Layout)
	}
	if req.Color != nil {
		g.SetColor(*req.Color)
	}
	if req.Highlight != nil || req.Label != nil {
		var column, label string
		if req.Highlight != nil {
			column = *req.Highlight
		}
		if req.Label != nil {
			label = *req.Label
		}
		g.SetHighlight(column, label)
	}
	refreshAndRespond(w, r, s)
}

// refreshAndRespond loads the new view and reports its status. A failed
// load is not a request error: the status carries the failure.
func refreshAndRespond(w http.ResponseWriter, r *http.Request, s *Session) {
	_ = s.Graph().Refresh(r.Context())
	writeJSON(w, http.StatusOK, s.Graph().Status())
}

type modeRequest struct {
	Mode string `json:"mode"`
	Tool string `json:"tool"`
}

func modeHandler(w http.ResponseWriter, r *http.Request) {
	s := getSession(r)
	var req modeRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	g := s.Graph()
	if req.Mode != "" {
		m, ok := selection.ParseMode(req.Mode)
		if !ok {
			http.Error(w, "unknown mode: "+req.Mode, http.StatusBadRequest)
			return
		}
		g.SetMode(m)
	}
	if req.Tool != "" {
		t, ok := selection.ParseTool(req.Tool)
		if !ok {
			http.Error(w, "unknown tool: "+req.Tool, http.StatusBadRequest)
			return
		}
		g.SetTool(t)
	}
	writeJSON(w, http.StatusOK, g.Status())
}

type pointerEvent struct {
	Kind      string  `json:"kind"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	DeltaY    float64 `json:"delta_y"`
	Synthetic bool    `json:"synthetic"`
}

// pointerHandler applies a batch of pointer events in order.
func pointerHandler(w http.ResponseWriter, r *http.Request) {
	s := getSession(r)
	var events []pointerEvent
	if err := decodeJSON(r, &events); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	parsed := make([]transform.PointerEvent, 0, len(events))
	for i, ev := range events {
		kind, ok := transform.ParsePointerKind(ev.Kind)
		if !ok {
			http.Error(w, "unknown pointer kind at "+strconv.Itoa(i)+": "+ev.Kind, http.StatusBadRequest)
			return
		}
		parsed = append(parsed, transform.PointerEvent{
			Kind:      kind,
			X:         ev.X,
			Y:         ev.Y,
			DeltaY:    ev.DeltaY,
			Synthetic: ev.Synthetic,
		})
	}

	g := s.Graph()
	for _, ev := range parsed {
		g.HandlePointer(ev)
	}
	refreshAndRespond(w, r, s)
}

func cancelHandler(w http.ResponseWriter, r *http.Request) {
	s := getSession(r)
	s.Graph().CancelGesture()
	writeJSON(w, http.StatusOK, s.Graph().Status())
}

func selectionResponse(s *Session) (map[string]interface{}, error) {
	sum := s.Selection()
	shape, err := selection.MarshalShape(sum.Shape)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"shape":   json.RawMessage(shape),
		"kind":    sum.Kind,
		"count":   sum.Count,
		"total":   sum.Total,
		"indices": sum.Indices,
	}, nil
}

func selectionHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := selectionResponse(getSession(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// setSelectionHandler replaces the selection with a shape in data space.
func setSelectionHandler(w http.ResponseWriter, r *http.Request) {
	s := getSession(r)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	shape, err := selection.UnmarshalShape(body)
	if err != nil {
		http.Error(w, "invalid shape: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.Graph().SetSelection(shape)
	selectionHandler(w, r)
}

func deselectHandler(w http.ResponseWriter, r *http.Request) {
	getSession(r).Graph().Deselect()
	selectionHandler(w, r)
}

func selectionHistoryHandler(ss *selstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ss == nil {
			http.Error(w, "selection history disabled", http.StatusNotFound)
			return
		}
		limit := 50
		if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		records, err := ss.ListByDataset(getSession(r).ID(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []*selstore.Record{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"selections": records})
	}
}

func lookupRecord(w http.ResponseWriter, r *http.Request, ss *selstore.Store) *selstore.Record {
	if ss == nil {
		http.Error(w, "selection history disabled", http.StatusNotFound)
		return nil
	}
	id := chi.URLParam(r, "selection_id")
	rec, err := ss.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil
	}
	if rec == nil || rec.DatasetID != getSession(r).ID() {
		http.Error(w, "selection not found: "+id, http.StatusNotFound)
		return nil
	}
	return rec
}

func selectionRecordHandler(ss *selstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec := lookupRecord(w, r, ss); rec != nil {
			writeJSON(w, http.StatusOK, rec)
		}
	}
}

func selectionDeleteHandler(ss *selstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := lookupRecord(w, r, ss)
		if rec == nil {
			return
		}
		if err := ss.Delete(rec.ID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
