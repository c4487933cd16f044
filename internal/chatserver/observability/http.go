package observability

import (
	"encoding/json"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"
)

var startTime = time.Now()

// Version is overridden via ldflags at build time.
var Version = "dev"

// Server is the read-only HTTP diagnostics endpoint: a handful of
// JSON routes behind the ACL middleware, fronting a MetricsSource and
// an optional EventStore.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the observability HTTP server. source provides the
// point-in-time snapshot; events may be nil, in which case the events
// route is omitted.
func NewServer(listen string, source MetricsSource, events *EventStore, cidrs []*net.IPNet) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", handleHealth)
	mux.HandleFunc("GET /api/v1/snapshot", makeSnapshotHandler(source))
	if events != nil {
		mux.HandleFunc("GET /api/v1/events", makeEventsHandler(events))
	}

	acl := NewACL(cidrs)
	return &Server{
		httpServer: &http.Server{
			Addr:    listen,
			Handler: acl.Middleware(mux),
		},
	}
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Close() error {
	return s.httpServer.Close()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(startTime).String(),
		Go:      runtime.Version(),
		Version: Version,
	})
}

func makeSnapshotHandler(source MetricsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, source.Snapshot())
	}
}

func makeEventsHandler(events *EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseInt(r.URL.Query().Get("limit"), 50)
		writeJSON(w, http.StatusOK, events.Recent(limit))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func parseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return defaultVal
	}
	return v
}
