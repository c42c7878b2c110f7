package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Component is a background part of the bot with its own goroutines.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime starts components in registration order and stops the started
// ones in reverse.
type Runtime struct {
	mu         sync.Mutex
	components []Component
	started    []Component
	logger     *log.Entry
}

func NewRuntime(components ...Component) *Runtime {
	r := &Runtime{logger: log.WithField("object", "Runtime")}
	for _, c := range components {
		r.Register(c)
	}
	return r
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, component)
}

// Start stops everything it already started when a component fails.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, component := range r.components {
		name := componentName(component)
		if err := component.Start(ctx); err != nil {
			_ = r.stopStarted(ctx)
			return fmt.Errorf("start %s: %w", name, err)
		}
		r.started = append(r.started, component)
		r.logger.WithField("component", name).Debug("started")
	}
	return nil
}

// Stop is safe to call more than once.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopStarted(ctx)
}

func (r *Runtime) stopStarted(ctx context.Context) error {
	var stopErr error
	for i := len(r.started) - 1; i >= 0; i-- {
		component := r.started[i]
		name := componentName(component)
		if err := component.Stop(ctx); err != nil {
			r.logger.WithField("component", name).WithField("error", err.Error()).Warn("stop failed")
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %s: %w", name, err))
			continue
		}
		r.logger.WithField("component", name).Debug("stopped")
	}
	r.started = nil
	return stopErr
}

func componentName(c Component) string {
	return fmt.Sprintf("%T", c)
}
