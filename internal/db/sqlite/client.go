package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/iamwavecut/modbot/resources"
)

type sqliteClient struct {
	db    *sqlx.DB
	mutex sync.RWMutex
}

// NewSQLiteClient opens the database file in dir and applies the embedded
// migrations.
func NewSQLiteClient(ctx context.Context, dir string, name string) (*sqliteClient, error) {
	dbx, err := sqlx.ConnectContext(ctx, "sqlite", filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	dbx.SetMaxOpenConns(1)

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.ExecContext(ctx, dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	if n > 0 {
		log.WithField("object", "sqliteClient").Infof("applied %d migrations", n)
	}

	return &sqliteClient{db: dbx}, nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}
