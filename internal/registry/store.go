package registry

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/modbot/internal/db"
	"github.com/iamwavecut/modbot/internal/observability"
)

// Store serializes every load-mutate-save of the registry document through
// one mutex, so concurrent updates never overwrite each other.
type Store struct {
	kv     db.KV
	key    string
	mu     sync.Mutex
	logger *log.Entry
}

func NewStore(kv db.KV) *Store {
	return &Store{
		kv:     kv,
		key:    db.KeyModerationData,
		logger: log.WithField("object", "RegistryStore"),
	}
}

// Snapshot returns a private copy of the current registry. It never fails:
// storage problems are logged and an empty registry is returned.
func (s *Store) Snapshot(ctx context.Context) *Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, _ := s.load(ctx)
	return r
}

// Update runs fn on a freshly loaded registry and saves the result unless fn
// fails. Save failures are logged and not returned: the caller's decision
// stands even if it was not persisted.
func (s *Store) Update(ctx context.Context, fn func(r *Registry) error) error {
	_, err := s.TryUpdate(ctx, fn)
	return err
}

// TryUpdate is Update that also reports whether the result reached the
// backend.
func (s *Store) TryUpdate(ctx context.Context, fn func(r *Registry) error) (saved bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, readable := s.load(ctx)
	if err := fn(r); err != nil {
		return false, err
	}
	if !readable {
		s.logger.Warn("store unreadable, update not persisted")
		return false, nil
	}
	return s.save(ctx, r), nil
}

// load reports readable=false when the backend itself failed, in which case
// nothing is written back to avoid replacing a document that may be intact.
func (s *Store) load(ctx context.Context) (r *Registry, readable bool) {
	raw, err := s.kv.GetKV(ctx, s.key)
	if err != nil {
		observability.RecordStoreError("load")
		s.logger.WithField("error", err.Error()).Error("cant load registry")
		return New(), false
	}
	if raw == "" {
		r = New()
		s.save(ctx, r)
		return r, true
	}

	r = &Registry{}
	if err := json.Unmarshal([]byte(raw), r); err != nil {
		observability.RecordStoreError("decode")
		s.logger.WithField("error", err.Error()).Error("corrupt registry, resetting to defaults")
		r = New()
		s.save(ctx, r)
		return r, true
	}
	if r.Backfill() {
		s.logger.Debug("backfilled missing registry sections")
		s.save(ctx, r)
	}
	return r, true
}

func (s *Store) save(ctx context.Context, r *Registry) bool {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		observability.RecordStoreError("encode")
		s.logger.WithField("error", err.Error()).Error("cant encode registry")
		return false
	}
	if err := s.kv.SetKV(ctx, s.key, string(data)); err != nil {
		observability.RecordStoreError("save")
		s.logger.WithField("error", err.Error()).Error("cant save registry")
		return false
	}
	return true
}
