// metrics.go - Metrics collection for the EmoChain node
package server

import (
	"runtime"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// NodeMetrics holds granular health metrics for the node.
type NodeMetrics struct {
	UptimeSeconds  int64   `json:"uptime_seconds"`
	BlockHeight    uint64  `json:"block_height"`
	MempoolSize    int     `json:"mempool_size"`
	Subscribers    int     `json:"subscribers"`
	EligibleCount  int     `json:"eligible_validators"`
	CPULoadPercent float64 `json:"cpu_load_percent"`
	MemoryMB       float64 `json:"memory_mb"`
	DiskFreeMB     float64 `json:"disk_free_mb"`
	TipAgeSeconds  int64   `json:"tip_age_seconds"`
	LastBlockTime  string  `json:"last_block_time"`
}

// Track server start time for uptime calculation
var startTime = time.Now()

// GetNodeMetrics returns current health metrics for the node.
func (s *Server) GetNodeMetrics() NodeMetrics {
	uptime := int64(time.Since(startTime).Seconds())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	memoryMB := float64(m.Alloc) / (1024 * 1024)

	// Disk usage (root partition)
	var disk syscall.Statfs_t
	diskFreeMB := 0.0
	if err := syscall.Statfs("/", &disk); err == nil {
		diskFreeMB = float64(disk.Bfree) * float64(disk.Bsize) / (1024 * 1024)
	}

	cpuPercents, err := cpu.Percent(0, false)
	cpuLoad := 0.0
	if err == nil && len(cpuPercents) > 0 {
		cpuLoad = cpuPercents[0]
	}

	metrics := NodeMetrics{
		UptimeSeconds:  uptime,
		CPULoadPercent: cpuLoad,
		MemoryMB:       memoryMB,
		DiskFreeMB:     diskFreeMB,
	}

	if s.pool != nil {
		metrics.MempoolSize = s.pool.Len()
	}
	if s.Feed != nil {
		metrics.Subscribers = s.Feed.SubscriberCount()
	}
	if s.registry != nil {
		eligible := 0
		for _, v := range s.registry.Snapshot() {
			if v.Eligible() {
				eligible++
			}
		}
		metrics.EligibleCount = eligible
	}
	if s.chain != nil {
		tip := s.chain.Tip()
		metrics.BlockHeight = tip.Index
		metrics.LastBlockTime = tip.Timestamp.UTC().Format(time.RFC3339)
		metrics.TipAgeSeconds = int64(time.Since(tip.Timestamp).Seconds())
	}

	return metrics
}
