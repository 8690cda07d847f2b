package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskops/internal/bulk"
	"deskops/internal/items"
)

func newTestServer(t *testing.T) (*httptest.Server, *bulk.Engine, *items.Service) {
	t.Helper()

	engine := bulk.NewEngine(nil, nil, bulk.NopScheduler{}, nil, nil, bulk.EngineOptions{BatchSize: 10})
	service := items.NewService(nil)
	service.Put(items.Item{ID: "p-1", Type: bulk.ItemTypePosition, Symbol: "TASC", Status: items.StatusOpen, Enabled: true})
	service.Put(items.Item{ID: "p-2", Type: bulk.ItemTypePosition, Symbol: "BBOB", Status: items.StatusOpen, Enabled: true})
	items.NewHandlerSet(service, &stubExporter{}).RegisterAll(engine)

	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	ops := NewOperationsHandler(engine, nil)
	sel := NewSelectionHandler(engine.Selection(), service, nil)
	itm := NewItemsHandler(service, nil)

	r.Route("/api", func(r chi.Router) {
		r.Route("/operations", func(r chi.Router) {
			r.Get("/", ops.List)
			r.Post("/", ops.Start)
			r.Get("/stats", ops.Stats)
			r.Get("/actions", ops.Actions)
			r.Post("/undo", ops.Undo)
			r.Post("/redo", ops.Redo)
			r.Get("/undo/history", ops.UndoHistory)
			r.Get("/{id}", ops.Get)
			r.Post("/{id}/cancel", ops.Cancel)
		})
		r.Route("/selection/{itemType}", func(r chi.Router) {
			r.Get("/", sel.Get)
			r.Post("/select", sel.Select)
			r.Post("/deselect", sel.Deselect)
			r.Post("/toggle", sel.Toggle)
			r.Post("/all", sel.SelectAll)
			r.Delete("/", sel.Clear)
		})
		r.Route("/items/{itemType}", func(r chi.Router) {
			r.Get("/", itm.List)
			r.Get("/{id}", itm.Get)
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, engine, service
}

type stubExporter struct{}

func (stubExporter) Export(itemType bulk.ItemType, toExport []items.Item) (string, error) {
	return "stub.xlsx", nil
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()

	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequest(method, url, nil)
	}
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func waitCompleted(t *testing.T, server *httptest.Server, opID string) map[string]any {
	t.Helper()
	var body map[string]any
	require.Eventually(t, func() bool {
		var resp *http.Response
		resp, body = doJSON(t, http.MethodGet, server.URL+"/api/operations/"+opID, "")
		if resp.StatusCode != http.StatusOK {
			return false
		}
		status, _ := body["status"].(string)
		return status != string(bulk.StatusInProgress) && status != ""
	}, 2*time.Second, 10*time.Millisecond)
	return body
}

func TestStartEndpointLifecycle(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/selection/position/select", `{"ids":["p-1","p-2"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/operations/", `{"action":"close","item_type":"position"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	opID, _ := body["operation_id"].(string)
	require.NotEmpty(t, opID)

	final := waitCompleted(t, server, opID)
	assert.Equal(t, string(bulk.StatusCompleted), final["status"])
	assert.Equal(t, float64(2), final["processed_items"])

	// Clean completion empties the selection.
	resp, sel := doJSON(t, http.MethodGet, server.URL+"/api/selection/position/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), sel["count"])
}

func TestStartEndpointValidation(t *testing.T) {
	server, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "missing fields", body: `{}`, want: http.StatusBadRequest},
		{name: "malformed json", body: `{`, want: http.StatusBadRequest},
		{name: "unknown item type", body: `{"action":"close","item_type":"widget"}`, want: http.StatusBadRequest},
		{name: "unknown action", body: `{"action":"vaporize","item_type":"position"}`, want: http.StatusBadRequest},
		{name: "empty selection", body: `{"action":"close","item_type":"position"}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, server.URL+"/api/operations/", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestConcurrentStartConflicts(t *testing.T) {
	server, engine, _ := newTestServer(t)

	// Hold the first operation open with a blocking handler so the second
	// request hits the per-item-type serialization rule.
	release := make(chan struct{})
	engine.RegisterHandler(bulk.ItemTypePosition, bulk.ActionTag, func(ctx context.Context, ids []string) ([]bulk.ItemResult, error) {
		<-release
		return nil, nil
	})
	defer close(release)

	doJSON(t, http.MethodPost, server.URL+"/api/selection/position/select", `{"ids":["p-1","p-2"]}`)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/operations/", `{"action":"tag","item_type":"position"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, body["operation_id"])

	resp, conflict := doJSON(t, http.MethodPost, server.URL+"/api/operations/", `{"action":"tag","item_type":"position"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errObj, ok := conflict["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "OPERATION_IN_PROGRESS", errObj["error_code"])
}

func TestGetUnknownOperation(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/operations/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestCancelUnknownOperation(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/operations/nope/cancel", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUndoEmptyReturns422(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/operations/undo", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "UNDO_EMPTY_STACK", errObj["error_code"])
}

func TestUndoAfterOperation(t *testing.T) {
	server, _, service := newTestServer(t)

	doJSON(t, http.MethodPost, server.URL+"/api/selection/position/select", `{"ids":["p-1"]}`)
	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/operations/", `{"action":"close","item_type":"position"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	waitCompleted(t, server, body["operation_id"].(string))

	item, _ := service.Get(bulk.ItemTypePosition, "p-1")
	require.Equal(t, items.StatusClosed, item.Status)

	resp, undoBody := doJSON(t, http.MethodPost, server.URL+"/api/operations/undo", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "close", undoBody["action_type"])

	item, _ = service.Get(bulk.ItemTypePosition, "p-1")
	assert.Equal(t, items.StatusOpen, item.Status)

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/operations/redo", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	item, _ = service.Get(bulk.ItemTypePosition, "p-1")
	assert.Equal(t, items.StatusClosed, item.Status)
}

func TestActionsCatalog(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/operations/actions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	actions, ok := body["actions"].([]any)
	require.True(t, ok)
	assert.Len(t, actions, len(bulk.KnownActionTypes))

	first := actions[0].(map[string]any)
	assert.Contains(t, first, "undoable")
	assert.Contains(t, first, "requires_confirmation")
}

func TestStatsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	doJSON(t, http.MethodPost, server.URL+"/api/selection/position/select", `{"ids":["p-1"]}`)
	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/operations/", `{"action":"tag","item_type":"position"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	waitCompleted(t, server, body["operation_id"].(string))

	resp, stats := doJSON(t, http.MethodGet, server.URL+"/api/operations/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), stats["total_operations"])
	assert.Equal(t, float64(1), stats["successful_operations"])
}

func TestUndoHistoryEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/operations/undo/history?limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["count"])

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/operations/undo/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestItemsEndpoints(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/items/position/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])

	resp, item := doJSON(t, http.MethodGet, server.URL+"/api/items/position/p-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "TASC", item["symbol"])

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/items/widget/", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/items/position/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
