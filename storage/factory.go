package storage

import (
	"fmt"
	"log/slog"

	"salon-chat/contract"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
)

type Driver string

const (
	DriverS3     Driver = "s3"
	DriverBadger Driver = "badger"
)

type Config struct {
	Driver        Driver
	S3            S3Config
	BadgerPath    string
	PublicBaseURL string
}

// Open builds the configured backend. The returned close function releases the
// embedded store and is a no-op for S3.
func Open(cfg Config, log *slog.Logger) (contract.StorageBackend, func() error, error) {
	switch cfg.Driver {
	case DriverS3, "":
		if err := validator.New().Struct(cfg.S3); err != nil {
			return nil, nil, fmt.Errorf("s3 storage config: %w", err)
		}
		backend, err := NewS3Backend(cfg.S3, log)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() error { return nil }, nil
	case DriverBadger:
		if cfg.BadgerPath == "" {
			return nil, nil, fmt.Errorf("badger storage config: path is required")
		}
		db, err := badger.Open(badger.DefaultOptions(cfg.BadgerPath).WithLoggingLevel(badger.ERROR))
		if err != nil {
			return nil, nil, fmt.Errorf("open badger %s: %w", cfg.BadgerPath, err)
		}
		return NewBadgerBackend(db, log, cfg.PublicBaseURL), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
