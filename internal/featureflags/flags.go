package featureflags

import (
	"os"
	"strings"
)

// Known flags
const (
	// TaskEvents publishes task lifecycle events to Kafka
	TaskEvents = "task_events"
	// DashboardCache caches dashboard payloads per tenant and caller
	DashboardCache = "dashboard_cache"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Snapshot reports the state of every known flag
func Snapshot() map[string]bool {
	return map[string]bool{
		TaskEvents:     Enabled(TaskEvents),
		DashboardCache: Enabled(DashboardCache),
	}
}
