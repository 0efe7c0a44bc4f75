// Package dbtest はテスト用に一時ディレクトリの SQLite を用意する。
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"michibiblio-backend/internal/platform/db"
)

// Open は t.TempDir() に DB ファイルを作り、マイグレーション済みで返す
func Open(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Connect(db.DatabaseConfig{
		Driver: string(db.SQLite),
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.Migrate(context.Background(), conn, db.SQLite, "up"))
	return conn
}
