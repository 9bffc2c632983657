package models

import "time"

// ServerStatsResponse reports process-level runtime statistics.
type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	CPU           CPUStats  `json:"cpu"`
	Memory        MemoryStats `json:"memory"`
	Inventory     InventoryStats `json:"inventory"`
}

// CPUStats reports system CPU usage sampled at request time.
type CPUStats struct {
	NumCPU      int     `json:"num_cpu"`
	UsedPercent float64 `json:"used_percent"`
	IdlePercent float64 `json:"idle_percent"`
}

// MemoryStats reports system memory usage sampled at request time.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// InventoryStats reports the state of the cached container inventory.
type InventoryStats struct {
	CachedInstances int    `json:"cached_instances"`
	LastRefreshed   string `json:"last_refreshed,omitempty"`
	Stale           bool   `json:"stale"`
}
