// Package bolt stores snapshots in a single local bbolt database file.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chat-to-rich/pkg/storage"

	bbolt "go.etcd.io/bbolt"
)

// DefaultBucket is the bucket snapshots are written to.
const DefaultBucket = "snapshots"

// BoltBackend implements storage.Backend on top of a bbolt file.
type BoltBackend struct {
	db     *bbolt.DB
	name   string
	bucket []byte
}

// BoltBackendConfig holds configuration for the bolt backend.
type BoltBackendConfig struct {
	Name string

	// Path is the database file; parent directories are created.
	Path string

	// Bucket defaults to DefaultBucket.
	Bucket string

	// OpenTimeout bounds how long Open waits for the file lock (default 1s).
	OpenTimeout time.Duration
}

// NewBoltBackend opens (or creates) the database file and its bucket.
func NewBoltBackend(config BoltBackendConfig) (*BoltBackend, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("%w: bolt path is required", storage.ErrInvalidValue)
	}
	if config.Name == "" {
		config.Name = "bolt"
	}
	if config.Bucket == "" {
		config.Bucket = DefaultBucket
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = time.Second
	}

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bolt: failed to create directory: %w", err)
		}
	}

	db, err := bbolt.Open(config.Path, 0o600, &bbolt.Options{Timeout: config.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: failed to open database: %w", err)
	}

	bucket := []byte(config.Bucket)
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: failed to create bucket %s: %w", config.Bucket, err)
	}

	return &BoltBackend{
		db:     db,
		name:   config.Name,
		bucket: bucket,
	}, nil
}

// Get returns the payload stored under key.
func (b *BoltBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		if bk == nil {
			return fmt.Errorf("bolt: bucket %s not found", b.bucket)
		}

		data := bk.Get([]byte(key))
		if data == nil {
			return storage.ErrKeyNotFound
		}

		// data is only valid for the lifetime of the transaction
		value = storage.Clone(data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Set writes value under key in a single read-write transaction.
func (b *BoltBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		return storage.ErrInvalidValue
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		if bk == nil {
			return fmt.Errorf("bolt: bucket %s not found", b.bucket)
		}
		return bk.Put([]byte(key), value)
	})
}

// Delete removes key.
func (b *BoltBackend) Delete(ctx context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		if bk == nil {
			return fmt.Errorf("bolt: bucket %s not found", b.bucket)
		}
		return bk.Delete([]byte(key))
	})
}

// Name returns the backend name.
func (b *BoltBackend) Name() string {
	return b.name
}

// Path returns the database file path.
func (b *BoltBackend) Path() string {
	return b.db.Path()
}

// Close closes the database file.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}
