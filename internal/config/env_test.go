package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_FallsBackOnBadValues(t *testing.T) {
	t.Setenv("ALLOWEDORIGINS", "")
	// unparsable values fall back to defaults
	t.Setenv("STORETIMEOUT", "not-a-duration")
	t.Setenv("REDISDB", "x")

	cfg := LoadConfig()
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("CTFHTTPPORT", "9090")
	t.Setenv("STOREBACKEND", "Redis")
	t.Setenv("STORETIMEOUT", "750ms")
	t.Setenv("REDISDB", "4")
	t.Setenv("TOKENTTL", "1h")
	t.Setenv("ALLOWEDORIGINS", "http://localhost:3000, ,https://ctf.example")

	cfg := LoadConfig()
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 4, cfg.RedisDB)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"http://localhost:3000", "https://ctf.example"}, cfg.AllowedOrigins)
}
