// Package scheduler runs delayed tasks that can be cancelled one by one or
// all at once on shutdown.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
)

type Handle string

type Scheduler struct {
	mu      sync.Mutex
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	pending map[Handle]context.CancelFunc
	wg      sync.WaitGroup
	logger  *log.Entry
}

func New() *Scheduler {
	return &Scheduler{
		pending: make(map[Handle]context.CancelFunc),
		logger:  log.WithField("object", "Scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.started = true
	s.stopped = false
	return nil
}

// Stop drops every pending task and waits for running ones to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// After runs task once delay has passed. The task context is cancelled when
// the scheduler stops. A scheduler that was never started runs tasks with a
// background context. After Stop nothing is scheduled and the empty handle
// is returned.
func (s *Scheduler) After(delay time.Duration, task func(ctx context.Context)) Handle {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.WithField("delay", delay).Warn("scheduler stopped, task dropped")
		return ""
	}
	handle := Handle(uuid.New())
	parent := s.runCtx
	if parent == nil {
		parent = context.Background()
	}
	taskCtx, cancel := context.WithCancel(parent)
	s.pending[handle] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.forget(handle)
		defer cancel()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-taskCtx.Done():
			return
		case <-timer.C:
		}

		defer func() {
			if p := recover(); p != nil {
				s.logger.WithField("panic", p).Error("scheduled task panicked")
			}
		}()
		task(taskCtx)
	}()

	return handle
}

// Cancel stops a task that has not fired yet and reports whether it was
// still pending.
func (s *Scheduler) Cancel(handle Handle) bool {
	s.mu.Lock()
	cancel, ok := s.pending[handle]
	delete(s.pending, handle)
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) forget(handle Handle) {
	s.mu.Lock()
	delete(s.pending, handle)
	s.mu.Unlock()
}
