package document_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-billing/internal/document"
)

type memStore struct {
	mu    sync.Mutex
	snaps map[string]document.Snapshot
}

func (s *memStore) SaveSnapshot(_ context.Context, snap document.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snaps == nil {
		s.snaps = make(map[string]document.Snapshot)
	}
	s.snaps[snap.ID] = snap
	return nil
}

func (s *memStore) LoadSnapshot(_ context.Context, id string) (document.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	if !ok {
		return document.Snapshot{}, document.ErrNotFound
	}
	return snap, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := &document.Service{
		Store:            &memStore{},
		AutosaveInterval: time.Hour,
		Logger:           zerolog.Nop(),
	}
	handler := &document.Handler{Svc: svc, Validate: validator.New()}
	r := chi.NewRouter()
	r.Route("/v1", handler.Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		svc.CloseAll(context.Background())
		srv.Close()
	})
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestCreateAndEditInvoiceFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/documents",
		`{"type":"invoice","issueDate":"2024-03-01","paymentTerm":"Net 30"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	docID := data["id"].(string)
	require.Equal(t, "2024-03-31", data["dueDate"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/documents/"+docID+"/items", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	item := body["data"].(map[string]any)["item"].(map[string]any)
	itemID := item["id"].(string)

	itemURL := srv.URL + "/v1/documents/" + docID + "/items/" + itemID
	resp, _ = doJSON(t, http.MethodPatch, itemURL, `{"field":"quantity","value":"80"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = doJSON(t, http.MethodPatch, itemURL, `{"field":"unitRate","value":"75"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	totals := body["data"].(map[string]any)["totals"].(map[string]any)
	require.Equal(t, "6000", totals["subtotal"])

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/v1/documents/"+docID+"/discount",
		`{"kind":"percent","value":"5"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	totals = body["data"].(map[string]any)["totals"].(map[string]any)
	require.Equal(t, "300", totals["discount"])
	require.Equal(t, "5700", totals["total"])
}

func TestShippingRejectedOnInvoiceAPI(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/v1/documents",
		`{"type":"invoice","issueDate":"2024-01-15","paymentTerm":"Due on Receipt"}`)
	docID := body["data"].(map[string]any)["id"].(string)

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/v1/documents/"+docID+"/shipping", `{"amount":"10"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPurchaseOrderTotalsAPI(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/v1/documents",
		`{"type":"purchase_order","issueDate":"2024-01-15","paymentTerm":"Net 15"}`)
	docID := body["data"].(map[string]any)["id"].(string)

	_, body = doJSON(t, http.MethodPost, srv.URL+"/v1/documents/"+docID+"/items", "")
	itemID := body["data"].(map[string]any)["item"].(map[string]any)["id"].(string)
	itemURL := fmt.Sprintf("%s/v1/documents/%s/items/%s", srv.URL, docID, itemID)
	doJSON(t, http.MethodPatch, itemURL, `{"field":"quantity","value":"1"}`)
	doJSON(t, http.MethodPatch, itemURL, `{"field":"unitRate","value":"150"}`)

	doJSON(t, http.MethodPut, srv.URL+"/v1/documents/"+docID+"/discount", `{"kind":"fixed","value":"15"}`)
	doJSON(t, http.MethodPut, srv.URL+"/v1/documents/"+docID+"/tax", `{"rate":"8.5"}`)
	resp, body := doJSON(t, http.MethodPut, srv.URL+"/v1/documents/"+docID+"/shipping", `{"amount":"20"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	totals := body["data"].(map[string]any)["totals"].(map[string]any)
	require.Equal(t, "11.475", totals["tax"])
	require.Equal(t, "166.475", totals["total"])
}

func TestValidationFailures(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/documents",
		`{"type":"receipt","issueDate":"2024-01-15","paymentTerm":"Net 15"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/documents/missing", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAutosaveStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/v1/documents",
		`{"type":"invoice","issueDate":"2024-01-15","paymentTerm":"Net 45"}`)
	docID := body["data"].(map[string]any)["id"].(string)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/documents/"+docID+"/autosave", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := body["data"].(map[string]any)["status"].(string)
	require.Contains(t, []string{"scheduled", "saving"}, status)

	// Closing keeps the snapshot; the status poll reports idle instead of 404.
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/documents/"+docID, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/documents/"+docID+"/autosave", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "idle", body["data"].(map[string]any)["status"].(string))
}
