package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/modbot/internal/infra"
	"github.com/iamwavecut/modbot/internal/registry"
)

const dayLayout = "2006-01-02"

// Scanner periodically merges buffered activity into the registry's user
// statistics and advances the parsing state.
type Scanner struct {
	store     *registry.Store
	buffer    *Buffer
	interval  time.Duration
	isParsing atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	logger  *log.Entry
}

func NewScanner(store *registry.Store, buffer *Buffer, interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scanner{
		store:    store,
		buffer:   buffer,
		interval: interval,
		logger:   log.WithField("object", "StatsScanner"),
	}
}

func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.wg.Add(1)
	go s.loop(runCtx)
	return nil
}

func (s *Scanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// flush whatever arrived after the last tick
	s.Scan(context.WithoutCancel(ctx))
	return nil
}

func (s *Scanner) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanRecoverable(ctx)
		}
	}
}

func (s *Scanner) scanRecoverable(ctx context.Context) {
	defer infra.Recover("stats_scan", nil)
	s.Scan(ctx)
}

// Scan merges the buffered activity and returns how many messages it took.
// It returns 0 immediately when another scan is running. Activity that
// could not be saved goes back to the buffer for the next scan.
func (s *Scanner) Scan(ctx context.Context) int {
	if !s.isParsing.CompareAndSwap(false, true) {
		s.logger.Debug("scan already running")
		return 0
	}
	defer s.isParsing.Store(false)

	items := s.buffer.Drain()
	if len(items) == 0 {
		return 0
	}

	saved, _ := s.store.TryUpdate(ctx, func(r *registry.Registry) error {
		Merge(r, items)
		return nil
	})
	if !saved {
		s.buffer.Requeue(items)
		s.logger.WithField("messages", len(items)).Warn("activity not saved, requeued")
		return 0
	}
	s.logger.WithField("messages", len(items)).Debug("activity merged")
	return len(items)
}

// Merge folds items into r.UserStats and moves r.ParsingState to the newest
// item.
func Merge(r *registry.Registry, items []Activity) {
	if r.UserStats == nil {
		r.UserStats = make(map[registry.UserID]*registry.UserStats)
	}
	for _, a := range items {
		uid := registry.UserIDOf(a.UserID)
		st, ok := r.UserStats[uid]
		if !ok || st == nil {
			st = &registry.UserStats{
				Activity:  make(map[string]int),
				FirstSeen: registry.At(a.At),
			}
			r.UserStats[uid] = st
		}
		if st.Activity == nil {
			st.Activity = make(map[string]int)
		}
		if a.Name != "" {
			st.Name = a.Name
		}
		st.TotalMessages++
		st.Activity[a.At.Format(dayLayout)]++
		if st.FirstSeen.IsZero() || a.At.Before(st.FirstSeen.Time) {
			st.FirstSeen = registry.At(a.At)
		}
		if a.At.After(st.LastSeen.Time) {
			st.LastSeen = registry.At(a.At)
		}

		if r.ParsingState == nil {
			r.ParsingState = &registry.ParsingState{}
		}
		if !a.At.Before(r.ParsingState.LastParsedDate.Time) {
			r.ParsingState.LastParsedDate = registry.At(a.At)
			r.ParsingState.LastParsedID = a.MessageID
		}
	}
}
