// Package config loads reefcore settings from defaults, an optional YAML file
// and REEFCORE_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Trace   TraceConfig   `yaml:"trace"`
}

// StorageConfig selects the record and reference store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	// MemorySeed is a JSON snapshot loaded into the memory store at startup.
	MemorySeed string `yaml:"memory_seed"`
}

// BlobConfig selects the blob store backing the report archive.
type BlobConfig struct {
	Driver string   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// S3Config configures the S3 blob driver.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// ArchiveConfig controls report archiving.
type ArchiveConfig struct {
	Format string `yaml:"format"`
	// Keep bounds the archived reports per record; zero keeps all.
	Keep int `yaml:"keep"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig selects the metrics recorder.
type MetricsConfig struct {
	Driver string `yaml:"driver"`
	// Textfile receives the Prometheus exposition after each CLI run.
	Textfile string `yaml:"textfile"`
}

// TraceConfig enables the JSON-lines tracer.
type TraceConfig struct {
	File string `yaml:"file"`
}

// Supported driver names.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	BlobNone   = "none"
	BlobFS     = "fs"
	BlobMemory = "memory"
	BlobS3     = "s3"

	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: StorageMemory, SQLitePath: "./reefcore.db"},
		Blob:    BlobConfig{Driver: BlobNone, FSRoot: "./blobdata"},
		Archive: ArchiveConfig{Format: "json"},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Driver: MetricsNone},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment. ${VAR} references in the file are
// expanded before parsing.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		// #nosec G304 -- path is operator-provided config path.
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		expanded := os.ExpandEnv(string(raw))
		expanded = strings.ReplaceAll(expanded, "\r\n", "\n")
		dec := yaml.NewDecoder(strings.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("REEFCORE_STORAGE_DRIVER", &c.Storage.Driver)
	str("REEFCORE_SQLITE_PATH", &c.Storage.SQLitePath)
	str("REEFCORE_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("REEFCORE_MEMORY_SEED", &c.Storage.MemorySeed)
	str("REEFCORE_BLOB_DRIVER", &c.Blob.Driver)
	str("REEFCORE_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("REEFCORE_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("REEFCORE_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("REEFCORE_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("REEFCORE_BLOB_S3_PREFIX", &c.Blob.S3.Prefix)
	str("REEFCORE_ARCHIVE_FORMAT", &c.Archive.Format)
	str("REEFCORE_LOG_LEVEL", &c.Log.Level)
	str("REEFCORE_METRICS_DRIVER", &c.Metrics.Driver)
	str("REEFCORE_METRICS_TEXTFILE", &c.Metrics.Textfile)
	str("REEFCORE_TRACE_FILE", &c.Trace.File)
	if v, ok := lookup("REEFCORE_BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REEFCORE_BLOB_S3_PATH_STYLE: %w", err)
		}
		c.Blob.S3.PathStyle = b
	}
	if v, ok := lookup("REEFCORE_ARCHIVE_KEEP"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REEFCORE_ARCHIVE_KEEP: %w", err)
		}
		c.Archive.Keep = n
	}
	return nil
}

// Validate rejects unknown drivers and settings that cannot work together.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required when storage.driver=sqlite")
		}
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required when storage.driver=postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Storage.MemorySeed != "" && c.Storage.Driver != StorageMemory {
		return fmt.Errorf("storage.memory_seed only applies to storage.driver=memory")
	}
	switch c.Blob.Driver {
	case "", BlobNone, BlobMemory:
	case BlobFS:
		if c.Blob.FSRoot == "" {
			return fmt.Errorf("blob.fs_root is required when blob.driver=fs")
		}
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob.s3.bucket is required when blob.driver=s3")
		}
		if (c.Blob.S3.AccessKeyID == "") != (c.Blob.S3.SecretAccessKey == "") {
			return fmt.Errorf("blob.s3.access_key_id and blob.s3.secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("unknown blob.driver %q", c.Blob.Driver)
	}
	switch c.Archive.Format {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("unknown archive.format %q", c.Archive.Format)
	}
	if c.Archive.Keep < 0 {
		return fmt.Errorf("archive.keep must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	switch c.Metrics.Driver {
	case "", MetricsNone, MetricsExpvar:
		if c.Metrics.Textfile != "" {
			return fmt.Errorf("metrics.textfile requires metrics.driver=prometheus")
		}
	case MetricsPrometheus:
	default:
		return fmt.Errorf("unknown metrics.driver %q", c.Metrics.Driver)
	}
	return nil
}

// ArchiveEnabled reports whether runs are archived to a blob store.
func (c Config) ArchiveEnabled() bool {
	return c.Blob.Driver != "" && c.Blob.Driver != BlobNone
}
