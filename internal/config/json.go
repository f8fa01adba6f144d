package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/chunkvault/chunkvault/internal/flagx"
	"github.com/chunkvault/chunkvault/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "5s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr      string         `json:"endpoint_addr"`
	DatabaseDSN       string         `json:"database_dsn"`
	ChunkSize         int            `json:"chunk_size"`
	PollInterval      timex.Duration `json:"poll_interval"`
	HeartbeatInterval timex.Duration `json:"heartbeat_interval"`
	LeaseTimeout      timex.Duration `json:"lease_timeout"`
	CacheDir          string         `json:"cache_dir"`
	CacheTTL          timex.Duration `json:"cache_ttl"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3QuotaLimit      int64          `json:"s3_quota_limit"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path is taken from the -c/-config flags; when
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.ChunkSize = c.ChunkSize
	config.PollInterval = time.Duration(c.PollInterval.Duration)
	config.HeartbeatInterval = time.Duration(c.HeartbeatInterval.Duration)
	config.LeaseTimeout = time.Duration(c.LeaseTimeout.Duration)
	config.CacheDir = c.CacheDir
	config.CacheTTL = time.Duration(c.CacheTTL.Duration)
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3QuotaLimit = c.S3QuotaLimit
}
