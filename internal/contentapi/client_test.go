package contentapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(server.URL, "test-key")
	t.Cleanup(client.Close)
	return client
}

func TestGetDocument(t *testing.T) {
	var gotPath, gotAuth, gotDraft string
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDraft = r.URL.Query().Get("draft")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"document": map[string]any{"slug": "5-axis-machining", "title": "5-Axis CNC Machining"},
		})
	})

	doc, err := client.GetDocument(context.Background(), "service", "5-axis-machining", true)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc["title"] != "5-Axis CNC Machining" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if gotPath != "/v1/documents/service/5-axis-machining" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %s", gotAuth)
	}
	if gotDraft != "true" {
		t.Errorf("expected draft=true, got %q", gotDraft)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetDocument(context.Background(), "service", "missing", false)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListDocuments(t *testing.T) {
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if got := r.URL.Query().Get("category"); got != "manufacturing-processes" {
			t.Errorf("unexpected category: %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "3" {
			t.Errorf("unexpected limit: %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documents": []map[string]any{
				{"slug": "a"}, {"slug": "b"},
			},
		})
	})

	docs, err := client.ListDocuments(context.Background(), "resource", "manufacturing-processes", 3, false)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 documents, got %d", len(docs))
	}
}

func TestListDocumentsEmptyBodyYieldsEmptySlice(t *testing.T) {
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})

	docs, err := client.ListDocuments(context.Background(), "resource", "", 0, false)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", docs)
	}
}

func TestServerErrorIsReported(t *testing.T) {
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.GetGlobal(context.Background(), "navigation", false)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("server error must not be reported as not-found")
	}
}

func TestHealthyReflectsInitialCheck(t *testing.T) {
	client := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if !client.Healthy() {
		t.Error("expected healthy client")
	}

	down := New("http://127.0.0.1:1", "")
	defer down.Close()
	if down.Healthy() {
		t.Error("expected unhealthy client for unreachable API")
	}
}
