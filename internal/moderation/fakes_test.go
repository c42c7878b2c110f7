package moderation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iamwavecut/modbot/internal/infrastructure/telegram"
	"github.com/iamwavecut/modbot/internal/registry"
	"github.com/iamwavecut/modbot/internal/scheduler"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memKV) GetKV(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memKV) SetKV(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string)
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Close() error { return nil }

func newTestStore() *registry.Store {
	return registry.NewStore(&memKV{})
}

type fakeChat struct {
	mu sync.Mutex

	admins     map[int64]bool
	adminErr   error
	adminCalls int
	adminList  []string

	deleted    []int
	notices    []telegram.Notice
	restricted map[int64]time.Time
	restored   []int64
	edited     map[int]string
	answers    []string
	alerts     []bool

	deleteErr   error
	sendErr     error
	restrictErr error
	nextID      int
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		admins:     make(map[int64]bool),
		restricted: make(map[int64]time.Time),
		edited:     make(map[int]string),
		nextID:     1000,
	}
}

func (f *fakeChat) IsAdmin(ctx context.Context, chatID int64, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminCalls++
	if f.adminErr != nil {
		return false, f.adminErr
	}
	return f.admins[userID], nil
}

func (f *fakeChat) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeChat) SendNotice(ctx context.Context, n telegram.Notice) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.notices = append(f.notices, n)
	return f.nextID, nil
}

func (f *fakeChat) RestrictMember(ctx context.Context, chatID int64, userID int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restrictErr != nil {
		return f.restrictErr
	}
	f.restricted[userID] = until
	return nil
}

func (f *fakeChat) ListAdmins(ctx context.Context, chatID int64) ([]string, error) {
	return f.adminList, nil
}

func (f *fakeChat) RestoreMember(ctx context.Context, chatID int64, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, userID)
	delete(f.restricted, userID)
	return nil
}

func (f *fakeChat) EditNotice(ctx context.Context, chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited[messageID] = text
	return nil
}

func (f *fakeChat) AnswerCallback(ctx context.Context, callbackID string, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	f.alerts = append(f.alerts, alert)
	return nil
}

type fakeScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	tasks   []func(ctx context.Context)
	stopped bool
}

func (s *fakeScheduler) After(delay time.Duration, task func(ctx context.Context)) scheduler.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ""
	}
	s.delays = append(s.delays, delay)
	s.tasks = append(s.tasks, task)
	return scheduler.Handle("task")
}

func (s *fakeScheduler) runAll(ctx context.Context) {
	s.mu.Lock()
	tasks := append([]func(ctx context.Context)(nil), s.tasks...)
	s.mu.Unlock()
	for _, task := range tasks {
		task(ctx)
	}
}

var errChatDown = errors.New("chat client down")
