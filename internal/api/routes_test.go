package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thehyve/single-cell-explorer/internal/cache"
	"github.com/thehyve/single-cell-explorer/internal/data/frame"
	"github.com/thehyve/single-cell-explorer/internal/data/store"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/internal/selstore"
	"github.com/thehyve/single-cell-explorer/internal/transform"
	"github.com/thehyve/single-cell-explorer/pkg/colormap"
)

const testFrameSize = 400

// testServer holds the test server and its dependencies
type testServer struct {
	server     *httptest.Server
	cache      *cache.Manager
	selections *selstore.Store
	registry   *DatasetRegistry
}

func testBundle() *store.Bundle {
	return &store.Bundle{
		Name: "test",
		Layouts: []store.Layout{
			{Key: "grid", X: []float32{0, 1, 0, 1, 0.5, 0.52}, Y: []float32{0, 0, 1, 1, 0.5, 0.52}},
		},
		Obs: []*frame.Column{
			frame.NewCategorical("kind", []int32{0, 0, 1, 1, 2, 2}, []string{"low", "high", "center"}),
			frame.NewNumeric("score", []float32{1, 2, 3, 4, 5, 6}),
		},
	}
}

// setupTestServer initializes all components and returns a test server
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	src, err := store.NewMemorySource(testBundle())
	if err != nil {
		t.Fatalf("Failed to build dataset: %v", err)
	}

	cacheManager, err := cache.NewManager(cache.Config{
		FrameCacheSizeMB: 16,
		FrameTTL:         time.Minute,
	})
	if err != nil {
		t.Fatalf("Failed to initialize cache: %v", err)
	}

	selections, err := selstore.NewStore(filepath.Join(t.TempDir(), "selections.db"))
	if err != nil {
		t.Fatalf("Failed to open selection store: %v", err)
	}

	session, err := NewSession(SessionConfig{
		DatasetID:    "default",
		Dataset:      src,
		Cache:        cacheManager,
		Selections:   selections,
		Width:        testFrameSize,
		Height:       testFrameSize,
		PointScale:   4,
		Colormap:     colormap.Viridis,
		Tool:         selection.ToolBrush,
		MinLassoArea: selection.MinLassoArea,
		MinRunLength: 2,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	registry := NewDatasetRegistry("default", []string{"default"}, "")
	registry.Register("default", session)

	router := NewRouter(RouterConfig{
		Registry:    registry,
		Cache:       cacheManager,
		Selections:  selections,
		CORSOrigins: []string{"http://localhost:3000"},
	})

	ts := &testServer{
		server:     httptest.NewServer(router),
		cache:      cacheManager,
		selections: selections,
		registry:   registry,
	}
	t.Cleanup(ts.close)
	return ts
}

// close cleans up test server resources
func (ts *testServer) close() {
	ts.server.Close()
	ts.registry.Close()
	ts.cache.Close()
	ts.selections.Close()
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.server.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// --- Helper Functions ---

// assertStatusCode verifies the HTTP status code
func assertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status code %d, got %d: %s", expected, resp.StatusCode, body)
	}
}

// assertContentType verifies the Content-Type header
func assertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected Content-Type %q, got %q", expected, contentType)
	}
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
}

func screenPoint(t *testing.T, x, y float64) transform.Vec2 {
	t.Helper()
	p, err := transform.NewPipeline(transform.Viewport{Width: testFrameSize, Height: testFrameSize})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	s, err := p.DataToScreen(transform.Vec2{x, y}, transform.NewCamera())
	if err != nil {
		t.Fatalf("DataToScreen: %v", err)
	}
	return s
}

func dragEvents(from, to transform.Vec2) []pointerEvent {
	return []pointerEvent{
		{Kind: "down", X: from[0], Y: from[1]},
		{Kind: "move", X: to[0], Y: to[1]},
		{Kind: "up", X: to[0], Y: to[1]},
	}
}

// --- Tests ---

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	resp := ts.do(t, http.MethodGet, "/health", nil)
	assertStatusCode(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %q", body)
	}
}

func TestDatasetsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	resp := ts.do(t, http.MethodGet, "/api/datasets", nil)
	assertStatusCode(t, resp, http.StatusOK)
	assertContentType(t, resp, "application/json")

	var payload struct {
		Default  string        `json:"default"`
		Datasets []DatasetInfo `json:"datasets"`
		Title    string        `json:"title"`
	}
	decodeBody(t, resp, &payload)
	if payload.Default != "default" || len(payload.Datasets) != 1 {
		t.Fatalf("unexpected datasets payload %+v", payload)
	}
	if payload.Datasets[0].NumCells != 6 {
		t.Errorf("expected 6 cells, got %d", payload.Datasets[0].NumCells)
	}
}

func TestUnknownDataset(t *testing.T) {
	ts := setupTestServer(t)
	resp := ts.do(t, http.MethodGet, "/d/nope/api/status", nil)
	assertStatusCode(t, resp, http.StatusNotFound)
}

func TestMetadataEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	resp := ts.do(t, http.MethodGet, "/d/default/api/metadata", nil)
	assertStatusCode(t, resp, http.StatusOK)

	var md struct {
		NumCells      int             `json:"n_cells"`
		Layouts       []string        `json:"layouts"`
		DefaultLayout string          `json:"default_layout"`
		Obs           []store.ObsInfo `json:"obs"`
		Colormaps     []string        `json:"colormaps"`
	}
	decodeBody(t, resp, &md)
	if md.NumCells != 6 || md.DefaultLayout != "grid" || len(md.Layouts) != 1 {
		t.Fatalf("unexpected metadata %+v", md)
	}
	if len(md.Obs) != 2 || md.Obs[0].Type != "category" {
		t.Fatalf("unexpected obs %+v", md.Obs)
	}
	if len(md.Colormaps) == 0 {
		t.Fatal("expected colormap names")
	}
}

func TestFrameEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("rendersPNG", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/d/default/frame.png", nil)
		assertStatusCode(t, resp, http.StatusOK)
		assertContentType(t, resp, "image/png")
		img, err := png.Decode(resp.Body)
		if err != nil {
			t.Fatalf("Failed to decode PNG: %v", err)
		}
		if b := img.Bounds(); b.Dx() != testFrameSize || b.Dy() != testFrameSize {
			t.Fatalf("unexpected frame size %v", b)
		}
	})

	t.Run("cachesFrames", func(t *testing.T) {
		first, _ := io.ReadAll(ts.do(t, http.MethodGet, "/d/default/frame.png", nil).Body)
		second, _ := io.ReadAll(ts.do(t, http.MethodGet, "/d/default/frame.png", nil).Body)
		if !bytes.Equal(first, second) {
			t.Fatal("expected identical frames for an unchanged view")
		}
		if ts.cache.Stats()["frame_cache_len"].(int) < 1 {
			t.Fatal("expected a cached frame")
		}
	})

	t.Run("resizes", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/d/default/frame.png?w=300&h=200", nil)
		assertStatusCode(t, resp, http.StatusOK)
		img, err := png.Decode(resp.Body)
		if err != nil {
			t.Fatalf("Failed to decode PNG: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 200 {
			t.Fatalf("unexpected frame size %v", b)
		}
		ts.do(t, http.MethodGet, "/d/default/frame.png?w=400&h=400", nil)
	})

	t.Run("invalidSize", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/d/default/frame.png?w=abc", nil)
		assertStatusCode(t, resp, http.StatusBadRequest)
	})
}

func TestSelectionFlow(t *testing.T) {
	ts := setupTestServer(t)
	assertStatusCode(t, ts.do(t, http.MethodGet, "/d/default/frame.png", nil), http.StatusOK)

	from, to := screenPoint(t, 0.45, 0.6), screenPoint(t, 0.6, 0.45)
	resp := ts.do(t, http.MethodPost, "/d/default/api/pointer", dragEvents(from, to))
	assertStatusCode(t, resp, http.StatusOK)

	var sel struct {
		Shape   json.RawMessage   `json:"shape"`
		Kind    string            `json:"kind"`
		Count   int               `json:"count"`
		Total   int               `json:"total"`
		Indices []json.RawMessage `json:"indices"`
	}
	decodeBody(t, ts.do(t, http.MethodGet, "/d/default/api/selection", nil), &sel)
	if sel.Kind != "rectangle" || sel.Count != 2 || sel.Total != 6 {
		t.Fatalf("unexpected selection %+v", sel)
	}
	if len(sel.Indices) != 1 || string(sel.Indices[0]) != "[4,5]" {
		t.Fatalf("expected one run [4,5], got %s", sel.Indices)
	}

	var history struct {
		Selections []selstore.Record `json:"selections"`
	}
	decodeBody(t, ts.do(t, http.MethodGet, "/d/default/api/selections", nil), &history)
	if len(history.Selections) != 1 || history.Selections[0].Kind != "commit" || history.Selections[0].Count != 2 {
		t.Fatalf("unexpected history %+v", history)
	}
	id := history.Selections[0].ID

	resp = ts.do(t, http.MethodGet, "/d/default/api/selections/"+id, nil)
	assertStatusCode(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodDelete, "/d/default/api/selection", nil)
	assertStatusCode(t, resp, http.StatusOK)
	decodeBody(t, resp, &sel)
	if sel.Kind != "none" || sel.Count != 6 {
		t.Fatalf("expected cleared selection, got %+v", sel)
	}

	resp = ts.do(t, http.MethodDelete, "/d/default/api/selections/"+id, nil)
	assertStatusCode(t, resp, http.StatusNoContent)
	resp = ts.do(t, http.MethodGet, "/d/default/api/selections/"+id, nil)
	assertStatusCode(t, resp, http.StatusNotFound)
}

func TestSetSelectionEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	assertStatusCode(t, ts.do(t, http.MethodGet, "/d/default/frame.png", nil), http.StatusOK)

	body := `{"type":"polygon","vertices":[[-0.1,-0.1],[1.1,-0.1],[1.1,0.1],[-0.1,0.1]]}`
	resp := ts.do(t, http.MethodPut, "/d/default/api/selection", body)
	assertStatusCode(t, resp, http.StatusOK)

	var sel struct {
		Kind  string `json:"kind"`
		Count int    `json:"count"`
	}
	decodeBody(t, resp, &sel)
	if sel.Kind != "polygon" || sel.Count != 2 {
		t.Fatalf("expected the two bottom points, got %+v", sel)
	}

	resp = ts.do(t, http.MethodPut, "/d/default/api/selection", `{"type":"circle"}`)
	assertStatusCode(t, resp, http.StatusBadRequest)
}

func TestModeAndPointerValidation(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, http.MethodPut, "/d/default/api/mode", modeRequest{Mode: "zoom", Tool: "lasso"})
	assertStatusCode(t, resp, http.StatusOK)
	var st struct {
		Mode string `json:"mode"`
		Tool string `json:"tool"`
	}
	decodeBody(t, resp, &st)
	if st.Mode != "zoom" || st.Tool != "lasso" {
		t.Fatalf("unexpected status %+v", st)
	}

	assertStatusCode(t, ts.do(t, http.MethodPut, "/d/default/api/mode", modeRequest{Mode: "fly"}), http.StatusBadRequest)
	assertStatusCode(t, ts.do(t, http.MethodPut, "/d/default/api/mode", modeRequest{Tool: "wand"}), http.StatusBadRequest)
	assertStatusCode(t, ts.do(t, http.MethodPost, "/d/default/api/pointer", []pointerEvent{{Kind: "hover"}}), http.StatusBadRequest)
	assertStatusCode(t, ts.do(t, http.MethodPost, "/d/default/api/pointer", "{"), http.StatusBadRequest)

	resp = ts.do(t, http.MethodPost, "/d/default/api/pointer", []pointerEvent{{Kind: "wheel", X: 200, Y: 200, DeltaY: -300}})
	assertStatusCode(t, resp, http.StatusOK)
	var zoomed struct {
		Zoom float64 `json:"zoom"`
	}
	decodeBody(t, resp, &zoomed)
	if zoomed.Zoom <= 1 {
		t.Fatalf("expected zoom in, got %v", zoomed.Zoom)
	}
}

func TestViewFailureKeepsLastFrame(t *testing.T) {
	ts := setupTestServer(t)
	assertStatusCode(t, ts.do(t, http.MethodGet, "/d/default/frame.png", nil), http.StatusOK)

	resp := ts.do(t, http.MethodPut, "/d/default/api/view", map[string]string{"layout": "missing"})
	assertStatusCode(t, resp, http.StatusOK)
	var st struct {
		State string `json:"state"`
		Error string `json:"error"`
	}
	decodeBody(t, resp, &st)
	if st.State != "rejected" || st.Error != "Failure loading missing" {
		t.Fatalf("unexpected status %+v", st)
	}

	resp = ts.do(t, http.MethodGet, "/d/default/frame.png", nil)
	assertStatusCode(t, resp, http.StatusOK)
	if got := resp.Header.Get("X-Load-Error"); got != "Failure loading missing" {
		t.Fatalf("expected load error header, got %q", got)
	}

	resp = ts.do(t, http.MethodPut, "/d/default/api/view", map[string]string{"layout": "grid", "color": "score"})
	assertStatusCode(t, resp, http.StatusOK)
	decodeBody(t, resp, &st)
	if st.State != "fulfilled" || st.Error != "" {
		t.Fatalf("expected recovery, got %+v", st)
	}

	assertStatusCode(t, ts.do(t, http.MethodPut, "/d/default/api/view", `{"layout":""}`), http.StatusBadRequest)
	assertStatusCode(t, ts.do(t, http.MethodPut, "/d/default/api/view", `{"zoom":2}`), http.StatusBadRequest)
}

func TestStatsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	assertStatusCode(t, ts.do(t, http.MethodGet, "/d/default/frame.png", nil), http.StatusOK)

	var stats map[string]interface{}
	decodeBody(t, ts.do(t, http.MethodGet, "/d/default/api/stats", nil), &stats)
	if stats["position_uploads"].(float64) != 1 {
		t.Fatalf("expected one position upload, got %v", stats["position_uploads"])
	}
	if _, ok := stats["frame_cache_cap"]; !ok {
		t.Fatal("expected cache stats")
	}
}
