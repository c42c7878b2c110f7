package stats

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iamwavecut/modbot/internal/registry"
)

type memKV struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func (m *memKV) GetKV(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.data[key], nil
}

func (m *memKV) setGetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
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

var day = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func TestMerge(t *testing.T) {
	t.Parallel()

	r := registry.New()
	Merge(r, []Activity{
		{UserID: 1, Name: "alice", MessageID: 10, At: day},
		{UserID: 1, Name: "alice", MessageID: 11, At: day.Add(time.Hour)},
		{UserID: 2, Name: "bob", MessageID: 12, At: day.AddDate(0, 0, 1)},
	})

	alice := r.UserStats[registry.UserIDOf(1)]
	if alice == nil || alice.TotalMessages != 2 || alice.Activity["2025-06-01"] != 2 {
		t.Fatalf("unexpected stats for alice: %+v", alice)
	}
	if !alice.FirstSeen.Equal(day) || !alice.LastSeen.Equal(day.Add(time.Hour)) {
		t.Fatalf("unexpected first/last seen: %s %s", alice.FirstSeen, alice.LastSeen)
	}
	if r.ParsingState == nil || r.ParsingState.LastParsedID != 12 || !r.ParsingState.LastParsedDate.Equal(day.AddDate(0, 0, 1)) {
		t.Fatalf("unexpected parsing state: %+v", r.ParsingState)
	}
}

func TestMergeKeepsNewestParsingState(t *testing.T) {
	t.Parallel()

	r := registry.New()
	Merge(r, []Activity{{UserID: 1, MessageID: 20, At: day.Add(time.Hour)}})
	Merge(r, []Activity{{UserID: 1, MessageID: 19, At: day}})

	if r.ParsingState.LastParsedID != 20 {
		t.Fatalf("parsing state moved backwards: %+v", r.ParsingState)
	}
	if r.UserStats[registry.UserIDOf(1)].TotalMessages != 2 {
		t.Fatalf("late message not counted")
	}
}

func TestScanDrainsBufferIntoStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := registry.NewStore(&memKV{})
	buffer := NewBuffer()
	scanner := NewScanner(store, buffer, time.Hour)

	buffer.Record(Activity{UserID: 5, Name: "carol", MessageID: 1, At: day})
	buffer.Record(Activity{UserID: 5, Name: "carol", MessageID: 2, At: day})

	if n := scanner.Scan(ctx); n != 2 {
		t.Fatalf("Scan() = %d, want 2", n)
	}
	if buffer.Len() != 0 {
		t.Fatalf("buffer not drained")
	}
	if n := scanner.Scan(ctx); n != 0 {
		t.Fatalf("empty scan merged %d messages", n)
	}

	st := store.Snapshot(ctx).UserStats[registry.UserIDOf(5)]
	if st == nil || st.TotalMessages != 2 || st.Name != "carol" {
		t.Fatalf("stats not persisted: %+v", st)
	}
}

func TestScanRequeuesWhenStoreUnreadable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := &memKV{}
	store := registry.NewStore(kv)
	buffer := NewBuffer()
	scanner := NewScanner(store, buffer, time.Hour)

	kv.setGetErr(errors.New("disk gone"))
	buffer.Record(Activity{UserID: 5, Name: "carol", MessageID: 1, At: day})
	if n := scanner.Scan(ctx); n != 0 {
		t.Fatalf("Scan() = %d with unreadable store, want 0", n)
	}
	buffer.Record(Activity{UserID: 5, Name: "carol", MessageID: 2, At: day.Add(time.Minute)})
	if buffer.Len() != 2 {
		t.Fatalf("activity lost, buffer has %d items", buffer.Len())
	}

	kv.setGetErr(nil)
	if n := scanner.Scan(ctx); n != 2 {
		t.Fatalf("Scan() = %d after recovery, want 2", n)
	}
	r := store.Snapshot(ctx)
	if st := r.UserStats[registry.UserIDOf(5)]; st == nil || st.TotalMessages != 2 {
		t.Fatalf("requeued activity not merged: %+v", st)
	}
	if r.ParsingState == nil || r.ParsingState.LastParsedID != 2 {
		t.Fatalf("parsing state = %+v, want last id 2", r.ParsingState)
	}
}

func TestBufferRequeueKeepsOrder(t *testing.T) {
	t.Parallel()

	buffer := NewBuffer()
	buffer.Record(Activity{MessageID: 3})
	buffer.Requeue([]Activity{{MessageID: 1}, {MessageID: 2}})

	items := buffer.Drain()
	if len(items) != 3 || items[0].MessageID != 1 || items[1].MessageID != 2 || items[2].MessageID != 3 {
		t.Fatalf("unexpected order: %+v", items)
	}
}

func TestScanSkipsWhileParsing(t *testing.T) {
	t.Parallel()

	buffer := NewBuffer()
	scanner := NewScanner(registry.NewStore(&memKV{}), buffer, time.Hour)
	buffer.Record(Activity{UserID: 1, At: day})

	scanner.isParsing.Store(true)
	if n := scanner.Scan(context.Background()); n != 0 {
		t.Fatalf("overlapping scan ran")
	}
	if buffer.Len() != 1 {
		t.Fatalf("overlapping scan touched the buffer")
	}
}

func TestScannerStopFlushes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := registry.NewStore(&memKV{})
	buffer := NewBuffer()
	scanner := NewScanner(store, buffer, time.Hour)

	if err := scanner.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	buffer.Record(Activity{UserID: 9, Name: "dave", At: day})

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := scanner.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if store.Snapshot(ctx).UserStats[registry.UserIDOf(9)] == nil {
		t.Fatalf("stop did not flush the buffer")
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	r := registry.New()
	if got := Summary(r, day, "en"); got != "No activity recorded yet." {
		t.Fatalf("unexpected empty summary %q", got)
	}

	Merge(r, []Activity{
		{UserID: 1, Name: "alice", At: day},
		{UserID: 1, Name: "alice", At: day},
		{UserID: 2, Name: "bob", At: day.AddDate(0, 0, -1)},
		{UserID: 3, Name: "old", At: day.AddDate(0, 0, -30)},
	})
	got := Summary(r, day, "en")

	for _, want := range []string{
		"📊 Messages: 4, members: 3",
		"2025-06-01: 2",
		"2025-05-31: 1",
		"2025-05-26: 0",
		"1. alice: 2",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary misses %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "2025-05-02") {
		t.Fatalf("summary shows days outside the window:\n%s", got)
	}
}
