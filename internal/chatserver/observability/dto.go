package observability

// HostStats is a point-in-time snapshot of the machine running the
// conferencing server.
type HostStats struct {
	CPUPercent       float64 `json:"cpu_percent"`
	MemoryPercent    float64 `json:"memory_percent"`
	DiskUsagePercent float64 `json:"disk_usage_percent"`
	LoadAverage      float64 `json:"load_average"`
}

// ClientSummary is the public, read-only view of one logged-in client.
type ClientSummary struct {
	ID          string `json:"id"`
	Addr        string `json:"addr"`
	JoinedCount int    `json:"joined_count"`
}

// Snapshot is the full point-in-time view served by GET /api/v1/snapshot.
type Snapshot struct {
	ActiveClients  int             `json:"active_clients"`
	ActiveSessions int             `json:"active_sessions"`
	Uptime         string          `json:"uptime"`
	Host           HostStats       `json:"host"`
	Clients        []ClientSummary `json:"clients"`
}

// HealthResponse is served by GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Go      string `json:"go"`
	Version string `json:"version"`
}

// MetricsSource decouples the observability HTTP server from the
// chatserver.Server type it actually wraps.
type MetricsSource interface {
	Snapshot() Snapshot
}
