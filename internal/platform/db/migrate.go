package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/mysql/*.sql migrations/sqlite3/*.sql
var migrationsFS embed.FS

const migrationTableName = "schema_migrations"

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	log.Info().Str("component", "goose").Msgf(format, v...)
}

// goose の Fatalf は os.Exit しないようにエラーログだけ出す
func (gooseLogger) Fatalf(format string, v ...any) {
	log.Error().Str("component", "goose").Msgf(format, v...)
}

// Migrate は埋め込みマイグレーションに対して goose コマンドを実行する
// command: up | down | status | reset | version
func Migrate(ctx context.Context, conn *sql.DB, d Dialect, command string) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{})
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect(d.String()); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	dir := path.Join("migrations", d.String())
	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, conn, dir)
	case "down":
		err = goose.DownContext(ctx, conn, dir)
	case "status":
		err = goose.StatusContext(ctx, conn, dir)
	case "reset":
		err = goose.ResetContext(ctx, conn, dir)
	case "version":
		err = goose.VersionContext(ctx, conn, dir)
	default:
		return fmt.Errorf("unknown migrate command: %q", command)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}
