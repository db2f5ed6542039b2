package instance

import "github.com/openaid/aid-inventory/pkg/env"

// GetID identifies this worker process in logs.
func GetID() string {
	return env.Get("AIDINV_WORKER_ID", "worker-0")
}
