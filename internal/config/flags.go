package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-n string   NATS server address
//	-s string   storage driver ("local" or "s3")
//	-l string   local storage root directory
//	-o string   public base URL for client-facing links
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000")
//	-m int      max upload size, bytes
//	-w int      cleanup retention window, hours
//	-k int      cleanup chunk size
//	-i int      cleanup interval, hours
//	-a string   metrics listen address
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integer hours and converted to time.Duration.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-d", "-n", "-s", "-l", "-o", "-u", "-p", "-b", "-g", "-e", "-m", "-w", "-k", "-i", "-a",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.NATSAddr, "n", config.NATSAddr, "NATS server address")
	fs.StringVar(&config.StorageDriver, "s", config.StorageDriver, "storage driver (local|s3)")
	fs.StringVar(&config.LocalStoragePath, "l", config.LocalStoragePath, "local storage root")
	fs.StringVar(&config.PublicBaseURL, "o", config.PublicBaseURL, "public base URL")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.Int64Var(&config.MaxUploadSizeBytes, "m", config.MaxUploadSizeBytes, "max upload size (bytes)")
	fs.StringVar(&config.MetricsAddr, "a", config.MetricsAddr, "metrics listen address")

	cleanupMaxAge := fs.Int("w", int(config.CleanupMaxAge.Hours()), "cleanup retention window (hours)")
	cleanupInterval := fs.Int("i", int(config.CleanupInterval.Hours()), "cleanup interval (hours)")
	fs.IntVar(&config.CleanupChunkSize, "k", config.CleanupChunkSize, "cleanup chunk size")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.CleanupMaxAge = time.Duration(*cleanupMaxAge) * time.Hour
	config.CleanupInterval = time.Duration(*cleanupInterval) * time.Hour
}
