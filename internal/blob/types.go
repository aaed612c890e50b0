// Package blob exposes the blob store contract, a driver factory and the
// validation report archive built on top of it.
package blob

import (
	"reefcore/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrExists indicates a Put onto a taken key.
	ErrExists = core.ErrExists
	// ErrNotExist indicates a missing key.
	ErrNotExist = core.ErrNotExist
)
