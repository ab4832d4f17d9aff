package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// CoordinatorMetrics is returned by GET /v1/metrics/coordinator.
type CoordinatorMetrics struct {
	TotalRequests      int64   `json:"totalRequests"`
	ErrorRate          float64 `json:"errorRate"`
	CacheResolutions   int64   `json:"cacheResolutions"`
	QueryResolutions   int64   `json:"queryResolutions"`
	CacheHitRate       float64 `json:"cacheHitRate"`
	BatchesCommitted   int64   `json:"batchesCommitted"`
	DocumentsWritten   int64   `json:"documentsWritten"`
	StoreErrors        int64   `json:"storeErrors"`
	EventsPublished    int64   `json:"eventsPublished"`
	EventPublishErrors int64   `json:"eventPublishErrors"`
	Period             string  `json:"period"`
}
