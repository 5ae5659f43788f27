// status_response.go - JSON response structs for status/health endpoints
package server

// StatusResponse represents the JSON structure for the /status endpoint
type StatusResponse struct {
	Status          string      `json:"status"`
	Uptime          int64       `json:"uptime_seconds"`
	BlockHeight     uint64      `json:"block_height"`
	FinalizedHeight uint64      `json:"finalized_height"`
	MempoolSize     int         `json:"mempool_size"`
	Version         string      `json:"version"`
	APIVersion      string      `json:"api_version"`
	LastBlock       string      `json:"last_block_time"`
	Metrics         NodeMetrics `json:"metrics"`
}

// LivenessResponse for /health/liveness
type LivenessResponse struct {
	Alive bool `json:"alive"`
}

// ReadinessResponse for /health/readiness
type ReadinessResponse struct {
	Ready bool `json:"ready"`
}
