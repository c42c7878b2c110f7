// Package boltstore keeps moderation documents in a BoltDB file.
package boltstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BucketDocuments holds one JSON document per key.
var BucketDocuments = []byte("documents")

type Store struct {
	db *bolt.DB
}

// Options configures the BoltDB store.
type Options struct {
	// Path to the database file. Parent directories are created if needed.
	Path string

	// Timeout for obtaining the file lock. Zero means 5 seconds.
	Timeout time.Duration

	// FileMode for a new database file. Zero means 0600.
	FileMode os.FileMode
}

func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = "modbot.bolt"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0o600
	}

	if dir := filepath.Dir(opts.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(BucketDocuments)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", BucketDocuments, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) GetKV(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(BucketDocuments).Get([]byte(key)); data != nil {
			value = string(data)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("get kv %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetKV(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketDocuments).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("set kv %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
