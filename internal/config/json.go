package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
	"github.com/dmitrijs2005/filekeeper/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON config
// files. Interval fields use timex.Duration, accepting both string values
// such as "6h" and integer nanoseconds. After unmarshalling, non-zero fields
// are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN        string          `json:"database_dsn"`
	NATSAddr           string          `json:"nats_addr"`
	StorageDriver      string          `json:"storage_driver"`
	LocalStoragePath   string          `json:"local_storage_path"`
	PublicBaseURL      string          `json:"public_base_url"`
	S3AccessKey        string          `json:"s3_access_key"`
	S3SecretKey        string          `json:"s3_secret_key"`
	S3Bucket           string          `json:"s3_bucket"`
	S3Region           string          `json:"s3_region"`
	S3BaseEndpoint     string          `json:"s3_base_endpoint"`
	MaxUploadSizeBytes int64           `json:"max_upload_size_bytes"`
	UploadURLExpiry    timex.Duration  `json:"upload_url_expiry"`
	CleanupMaxAge      timex.Duration  `json:"cleanup_max_age"`
	CleanupChunkSize   int             `json:"cleanup_chunk_size"`
	CleanupInterval    timex.Duration  `json:"cleanup_interval"`
	ChunkTimeout       timex.Duration  `json:"chunk_timeout"`
	MetricsAddr        string          `json:"metrics_addr"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; with
// neither set, no JSON file is loaded. Unset JSON fields keep the values
// already in Config. An unreadable or invalid file panics, matching flag
// parsing behavior.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.NATSAddr != "" {
		config.NATSAddr = c.NATSAddr
	}
	if c.StorageDriver != "" {
		config.StorageDriver = c.StorageDriver
	}
	if c.LocalStoragePath != "" {
		config.LocalStoragePath = c.LocalStoragePath
	}
	if c.PublicBaseURL != "" {
		config.PublicBaseURL = c.PublicBaseURL
	}
	if c.S3AccessKey != "" {
		config.S3AccessKey = c.S3AccessKey
	}
	if c.S3SecretKey != "" {
		config.S3SecretKey = c.S3SecretKey
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.MaxUploadSizeBytes != 0 {
		config.MaxUploadSizeBytes = c.MaxUploadSizeBytes
	}
	if c.UploadURLExpiry.Duration != 0 {
		config.UploadURLExpiry = c.UploadURLExpiry.Duration
	}
	if c.CleanupMaxAge.Duration != 0 {
		config.CleanupMaxAge = c.CleanupMaxAge.Duration
	}
	if c.CleanupChunkSize != 0 {
		config.CleanupChunkSize = c.CleanupChunkSize
	}
	if c.CleanupInterval.Duration != 0 {
		config.CleanupInterval = c.CleanupInterval.Duration
	}
	if c.ChunkTimeout.Duration != 0 {
		config.ChunkTimeout = c.ChunkTimeout.Duration
	}
	if c.MetricsAddr != "" {
		config.MetricsAddr = c.MetricsAddr
	}
}
