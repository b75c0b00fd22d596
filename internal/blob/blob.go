// Package blob is the entry point for blob storage. It re-exports the core
// contract and wires the infra-backed filesystem, S3 and memory stores so
// callers never import internal/infra/blob directly.
package blob

import (
	"context"
	"flightcore/internal/blob/core"
	"flightcore/internal/infra/blob/fs"
	"flightcore/internal/infra/blob/memory"
	"flightcore/internal/infra/blob/s3"
	"fmt"
	"os"
	"strconv"
)

type (
	Store      = core.Store
	Info       = core.Info
	PutOptions = core.PutOptions
	Driver     = core.Driver
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrNotFound   = core.ErrNotFound
	ErrExists     = core.ErrExists
	ErrInvalidKey = core.ErrInvalidKey
)

// S3Config configures the S3 backend.
type S3Config = s3.Config

// Config selects and configures a blob backend.
type Config struct {
	Driver Driver   `json:"driver"`
	FSRoot string   `json:"fs_root"`
	S3     S3Config `json:"s3"`
}

// Open constructs the store named by cfg. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// OpenFromEnv selects a Store implementation using environment variables.
//
//	FLIGHTCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	FLIGHTCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./data)
//	FLIGHTCORE_BLOB_S3_BUCKET, _REGION, _ENDPOINT, _PREFIX, _PATH_STYLE
//	FLIGHTCORE_BLOB_S3_ACCESS_KEY_ID, _SECRET_ACCESS_KEY, _SESSION_TOKEN
func OpenFromEnv(ctx context.Context) (Store, error) {
	pathStyle, _ := strconv.ParseBool(os.Getenv("FLIGHTCORE_BLOB_S3_PATH_STYLE"))
	return Open(ctx, Config{
		Driver: Driver(os.Getenv("FLIGHTCORE_BLOB_DRIVER")),
		FSRoot: os.Getenv("FLIGHTCORE_BLOB_FS_ROOT"),
		S3: S3Config{
			Bucket:          os.Getenv("FLIGHTCORE_BLOB_S3_BUCKET"),
			Region:          os.Getenv("FLIGHTCORE_BLOB_S3_REGION"),
			Endpoint:        os.Getenv("FLIGHTCORE_BLOB_S3_ENDPOINT"),
			Prefix:          os.Getenv("FLIGHTCORE_BLOB_S3_PREFIX"),
			AccessKeyID:     os.Getenv("FLIGHTCORE_BLOB_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("FLIGHTCORE_BLOB_S3_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("FLIGHTCORE_BLOB_S3_SESSION_TOKEN"),
			PathStyle:       pathStyle,
		},
	})
}

// NewFilesystem returns a directory-backed store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns a process-local store.
func NewMemory() Store { return memory.New() }

// NewS3 returns a bucket-backed store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3.New(ctx, cfg) }
