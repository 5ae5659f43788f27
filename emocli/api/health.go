package api

import (
	"encoding/json"
	"net/http"
)

type HealthMetrics struct {
	Status  string `json:"status"`
	Metrics struct {
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
	} `json:"metrics"`
}

func GetHealthMetrics() (HealthMetrics, error) {
	resp, err := httpClient.Get(BaseURL() + "/nodehealth")
	if err != nil {
		return HealthMetrics{}, err
	}
	defer resp.Body.Close()
	var data HealthMetrics
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return HealthMetrics{}, err
	}
	return data, nil
}

func GetHealth() (string, error) {
	resp, err := httpClient.Get(BaseURL() + "/nodehealth")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var data map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	b, _ := json.MarshalIndent(data, "", "  ")
	return string(b), nil
}

func GetLiveness() (bool, error) {
	resp, err := http.Get(BaseURL() + "/health/liveness")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	var result struct {
		Alive bool `json:"alive"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Alive, nil
}

func GetReadiness() (bool, error) {
	resp, err := http.Get(BaseURL() + "/health/readiness")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	var result struct {
		Ready bool `json:"ready"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Ready, nil
}
