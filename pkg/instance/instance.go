package instance

import (
	"os"
	"strings"
)

// GetID identifies this process in logs and lock owners. Heroku-style DYNO
// names are used when no explicit id is set.
func GetID() string {
	for _, key := range []string{"PROMPTLY_INSTANCE_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
