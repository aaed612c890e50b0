package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"reefcore/internal/blob"
	"reefcore/internal/config"
	"reefcore/internal/infra/persistence/memory"
	"reefcore/internal/infra/persistence/postgres"
	"reefcore/internal/infra/persistence/sqlite"
	"reefcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = config.StorageMemory   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = config.StorageSQLite   // embedded sqlite file
	StoragePostgres StorageDriver = config.StoragePostgres // PostgreSQL server
)

// Stores bundles the collaborators a Service needs from one backend.
type Stores struct {
	Driver   StorageDriver
	Records  domain.RecordStore
	Refs     domain.ReferenceStore
	Instance domain.Instance
	closer   func() error
}

// Close releases the backend.
func (s *Stores) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// backend is satisfied by every store implementation.
type backend interface {
	domain.ReferenceStore
	domain.RecordStore
	domain.Instance
}

// OpenStores selects a backend from cfg. Each backend serves all three
// collaborator contracts.
func OpenStores(ctx context.Context, cfg config.StorageConfig) (*Stores, error) {
	var (
		b      backend
		closer func() error
	)
	switch StorageDriver(cfg.Driver) {
	case StorageMemory, "":
		store := memory.NewStore()
		if cfg.MemorySeed != "" {
			if err := seedMemory(store, cfg.MemorySeed); err != nil {
				return nil, err
			}
		}
		b = store
	case StorageSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b, closer = store, store.Close
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		b, closer = store, store.Close
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageMemory
	}
	return &Stores{Driver: driver, Records: b, Refs: b, Instance: b, closer: closer}, nil
}

func seedMemory(store *memory.Store, path string) error {
	// #nosec G304 -- path is operator-provided seed path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read memory seed: %w", err)
	}
	var snapshot memory.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return fmt.Errorf("decode memory seed %s: %w", path, err)
	}
	if err := store.ImportState(snapshot); err != nil {
		return fmt.Errorf("import memory seed %s: %w", path, err)
	}
	return nil
}

// OpenArchive builds the report archive configured in cfg, or returns nil
// when archiving is disabled.
func OpenArchive(ctx context.Context, cfg config.Config) (*blob.Archive, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil
	}
	store, err := blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Blob.Driver),
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          cfg.Blob.S3.Bucket,
			Region:          cfg.Blob.S3.Region,
			Endpoint:        cfg.Blob.S3.Endpoint,
			Prefix:          cfg.Blob.S3.Prefix,
			PathStyle:       cfg.Blob.S3.PathStyle,
			AccessKeyID:     cfg.Blob.S3.AccessKeyID,
			SecretAccessKey: cfg.Blob.S3.SecretAccessKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return blob.NewArchive(store, blob.Format(cfg.Archive.Format), blob.WithRetention(cfg.Archive.Keep))
}
