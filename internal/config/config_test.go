package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, 3<<20, cfg.ChunkSize)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.CacheTTL)
	assert.NotEmpty(t, cfg.DatabaseDSN)
}

func TestParseJsonOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")
	data := `{
		"endpoint_addr": ":9090",
		"database_dsn": "postgres://u:p@localhost/db",
		"chunk_size": 1048576,
		"poll_interval": "2s",
		"heartbeat_interval": "10s",
		"lease_timeout": "1m",
		"cache_dir": "/tmp/cache",
		"cache_ttl": "24h",
		"s3_bucket": "b",
		"s3_region": "r",
		"s3_base_endpoint": "http://localhost:9000/"
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"test", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":9090", cfg.EndpointAddr)
	assert.Equal(t, 1<<20, cfg.ChunkSize)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Minute, cfg.LeaseTimeout)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "b", cfg.S3Bucket)
}
