// Package config reads runtime settings from PUNCHLIST_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dukerupert/punchlist/internal/blob"
)

const envPrefix = "PUNCHLIST_"

const (
	BlobDriverFile   = "file"
	BlobDriverS3     = "s3"
	BlobDriverMemory = "memory"
)

type Config struct {
	Port        string
	DBPath      string
	LogLevel    string
	LogFormat   string
	BlobDriver  string
	BlobDir     string
	S3          blob.S3Config
	MaxUploadMB int
	StaticDir   string
	// WSOrigins restricts which browser origins may open the live update
	// socket. Empty allows any.
	WSOrigins []string
}

// LoadEnv loads a .env file into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// GetEnv returns the PUNCHLIST_-prefixed variable or fallback when unset.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		return value
	}
	return fallback
}

// Load reads the configuration from the environment. It does not validate.
func Load() (Config, error) {
	cfg := Config{
		Port:       GetEnv("PORT", "8080"),
		DBPath:     GetEnv("DB_PATH", "punchlist.db"),
		LogLevel:   GetEnv("LOG_LEVEL", "info"),
		LogFormat:  strings.ToLower(GetEnv("LOG_FORMAT", "text")),
		BlobDriver: strings.ToLower(GetEnv("BLOB_DRIVER", BlobDriverFile)),
		BlobDir:    GetEnv("BLOB_DIR", "data/photos"),
		S3: blob.S3Config{
			Endpoint:  GetEnv("S3_ENDPOINT", ""),
			Bucket:    GetEnv("S3_BUCKET", ""),
			Region:    GetEnv("S3_REGION", "us-east-1"),
			AccessKey: GetEnv("S3_ACCESS_KEY", ""),
			SecretKey: GetEnv("S3_SECRET_KEY", ""),
		},
		StaticDir: GetEnv("STATIC_DIR", ""),
		WSOrigins: splitList(GetEnv("WS_ORIGINS", "")),
	}

	mb, err := strconv.Atoi(GetEnv("MAX_UPLOAD_MB", "10"))
	if err != nil {
		return cfg, fmt.Errorf("%sMAX_UPLOAD_MB: %w", envPrefix, err)
	}
	cfg.MaxUploadMB = mb
	return cfg, nil
}

// Validate reports every setting that cannot be used, joined into one error.
func (c Config) Validate() error {
	var errs []error
	if n, err := strconv.Atoi(c.Port); err != nil || n < 1 || n > 65535 {
		errs = append(errs, fmt.Errorf("%sPORT: %q is not a valid port", envPrefix, c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, fmt.Errorf("%sDB_PATH is required", envPrefix))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("%sMAX_UPLOAD_MB must be positive", envPrefix))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%sLOG_FORMAT: %q is not text or json", envPrefix, c.LogFormat))
	}

	switch c.BlobDriver {
	case BlobDriverFile:
		if c.BlobDir == "" {
			errs = append(errs, fmt.Errorf("%sBLOB_DIR is required for the file driver", envPrefix))
		}
	case BlobDriverS3:
		if c.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("%sS3_BUCKET is required for the s3 driver", envPrefix))
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			errs = append(errs, fmt.Errorf("%sS3_ACCESS_KEY and %sS3_SECRET_KEY must be set together", envPrefix, envPrefix))
		}
	case BlobDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("%sBLOB_DRIVER: unknown driver %q", envPrefix, c.BlobDriver))
	}
	return errors.Join(errs...)
}

// MaxUploadBytes is the upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// OpenBlobStore builds the configured photo storage backend.
func (c Config) OpenBlobStore() (blob.Store, error) {
	switch c.BlobDriver {
	case BlobDriverFile:
		return blob.NewFileStore(c.BlobDir)
	case BlobDriverS3:
		return blob.NewS3Store(c.S3), nil
	case BlobDriverMemory:
		return blob.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown blob driver %q", c.BlobDriver)
}

// splitList parses a comma-separated value, dropping blank entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
