package sqlite

import (
	"context"
	"testing"
)

func TestKVStoreTableExistsAfterMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	var count int
	if err := client.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'kv_store'`); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 1 {
		t.Fatalf("kv_store table not found")
	}
}

func TestReopenKeepsMigrationsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	first, err := NewSQLiteClient(ctx, dir, "test.db")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := first.SetKV(ctx, "k", "v"); err != nil {
		t.Fatalf("set kv: %v", err)
	}
	_ = first.Close()

	second, err := NewSQLiteClient(ctx, dir, "test.db")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	got, err := second.GetKV(ctx, "k")
	if err != nil {
		t.Fatalf("get kv: %v", err)
	}
	if got != "v" {
		t.Fatalf("unexpected value after reopen: %q", got)
	}
}
