// status_handler.go - HTTP handler for /status
package server

import (
	"encoding/json"
	"net/http"
)

// HandleStatus responds to /status with node status
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	metrics := s.GetNodeMetrics()

	resp := StatusResponse{
		Status:          deriveNodeStatus(s, metrics),
		Uptime:          metrics.UptimeSeconds,
		BlockHeight:     metrics.BlockHeight,
		FinalizedHeight: s.FinalizedHeight(),
		MempoolSize:     metrics.MempoolSize,
		Version:         NodeVersion(),
		APIVersion:      APIVersion(),
		LastBlock:       metrics.LastBlockTime,
		Metrics:         metrics,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
