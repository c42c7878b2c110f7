package sqlite

import (
	"context"
	"testing"
)

func TestKVMissingKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	got, err := client.GetKV(ctx, "absent")
	if err != nil {
		t.Fatalf("get kv: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}

func TestKVOverwrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	for _, value := range []string{`{"a":1}`, `{"a":2}`} {
		if err := client.SetKV(ctx, "doc", value); err != nil {
			t.Fatalf("set kv: %v", err)
		}
	}
	got, err := client.GetKV(ctx, "doc")
	if err != nil {
		t.Fatalf("get kv: %v", err)
	}
	if got != `{"a":2}` {
		t.Fatalf("unexpected value: %q", got)
	}

	var rows int
	if err := client.db.GetContext(ctx, &rows, `SELECT COUNT(*) FROM kv_store`); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected one row, got %d", rows)
	}
}
