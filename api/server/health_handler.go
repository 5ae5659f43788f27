// health_handler.go - HTTP handlers for /nodehealth, /health/liveness, /health/readiness
package server

import (
	"encoding/json"
	"net/http"
)

// stallThresholdSeconds marks the tip age past which the producer is
// considered stalled.
const stallThresholdSeconds = 120

// deriveNodeStatus maps metrics to the coarse node state shown by /status
// and /nodehealth.
func deriveNodeStatus(s *Server, metrics NodeMetrics) string {
	if s.chain == nil {
		return "initializing"
	}
	if metrics.TipAgeSeconds > stallThresholdSeconds {
		return "stalled"
	}
	return "healthy"
}

// HandleLiveness responds to /health/liveness
func (s *Server) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{Alive: s.NodeLiveness()}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleReadiness responds to /health/readiness
func (s *Server) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := ReadinessResponse{Ready: s.NodeReadiness()}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// NodeHealthResponse is the response type for the /nodehealth endpoint
type NodeHealthResponse struct {
	Status  string      `json:"status"`
	Metrics NodeMetrics `json:"metrics"`
}

// HandleNodeHealth responds to /nodehealth (summary health)
func (s *Server) HandleNodeHealth(w http.ResponseWriter, r *http.Request) {
	metrics := s.GetNodeMetrics()
	resp := NodeHealthResponse{
		Status:  deriveNodeStatus(s, metrics),
		Metrics: metrics,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
