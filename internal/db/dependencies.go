package db

import "context"

// KV is a document store keyed by name. GetKV returns an empty string and no
// error for a missing key.
type KV interface {
	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
	Close() error
}

// Keys of the documents kept in the store.
const (
	KeyModerationData = "moderation_data"
)
