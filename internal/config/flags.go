package config

import (
	"flag"
	"os"
	"time"

	"github.com/chunkvault/chunkvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-k int      chunk size, bytes
//	-i int      worker poll interval, seconds
//	-l int      processing lease timeout, seconds
//	-o string   cache directory
//	-t int      cache TTL, hours
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-q int      per-account quota limit, bytes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-i", "-l", "-o", "-t", "-b", "-g", "-e", "-q"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.ChunkSize, "k", config.ChunkSize, "chunk size (bytes)")

	pollInterval := fs.Int("i", int(config.PollInterval.Seconds()), "worker poll interval (seconds)")
	leaseTimeout := fs.Int("l", int(config.LeaseTimeout.Seconds()), "processing lease timeout (seconds)")

	fs.StringVar(&config.CacheDir, "o", config.CacheDir, "cache directory")
	cacheTTL := fs.Int("t", int(config.CacheTTL.Hours()), "cache TTL (hours)")

	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.Int64Var(&config.S3QuotaLimit, "q", config.S3QuotaLimit, "per-account quota limit (bytes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PollInterval = time.Duration(*pollInterval) * time.Second
	config.LeaseTimeout = time.Duration(*leaseTimeout) * time.Second
	config.CacheTTL = time.Duration(*cacheTTL) * time.Hour
}
