package observability

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

type stubSource struct{ snap Snapshot }

func (s stubSource) Snapshot() Snapshot { return s.snap }

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	handleHealth(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSnapshotHandler(t *testing.T) {
	src := stubSource{snap: Snapshot{ActiveClients: 2, ActiveSessions: 1}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/snapshot", nil)
	makeSnapshotHandler(src)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected a JSON body")
	}
}

func TestEventsHandler(t *testing.T) {
	store, err := NewEventStore(filepath.Join(t.TempDir(), "events.jsonl"), 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	store.Push(EventEntry{Type: "login", Client: "alice"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/events?limit=1", nil)
	makeEventsHandler(store)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestParseIntDefaults(t *testing.T) {
	if got := parseInt("", 7); got != 7 {
		t.Errorf("parseInt empty = %d, want 7", got)
	}
	if got := parseInt("abc", 7); got != 7 {
		t.Errorf("parseInt invalid = %d, want 7", got)
	}
	if got := parseInt("3", 7); got != 3 {
		t.Errorf("parseInt valid = %d, want 3", got)
	}
}
