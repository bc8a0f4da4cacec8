package instance

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// GetID returns the configured device identifier, falling back to the
// CUISYNC_DEVICE_ID env var and finally to a random per-process id.
func GetID(configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}
	if id := os.Getenv("CUISYNC_DEVICE_ID"); id != "" {
		return id
	}
	return "device-" + uuid.NewString()[:8]
}
