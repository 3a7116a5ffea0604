// Package instance names the running worker process.
package instance

import "os"

// EnvWorkerID overrides the hostname-derived instance id.
const EnvWorkerID = "RESTO_WORKER_ID"

// ID returns the configured worker id, the hostname, or "worker-0".
func ID() string {
	if id := os.Getenv(EnvWorkerID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
