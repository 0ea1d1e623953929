package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("PROMPTLY_INSTANCE_ID", "cron-2")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "cron-2", GetID())
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("PROMPTLY_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "web.1", GetID())

	t.Setenv("DYNO", "")
	assert.Equal(t, "local", GetID())
}
