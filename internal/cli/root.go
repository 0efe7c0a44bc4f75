// Package cli は michibiblio コマンド（serve / migrate / seed / recompute / token）。
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"michibiblio-backend/internal/app"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/logger"
)

const appName = "michibiblio"

// env はサブコマンド共通の設定とロガー
type env struct {
	configPath string
	cfg        *db.Config
	log        zerolog.Logger
}

func NewRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Library lending backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := db.LoadConfig(e.configPath)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = logger.Setup(appName, cfg.Log.Level, cfg.Log.Format)
			cmd.SetContext(e.log.WithContext(cmd.Context()))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", db.DefaultConfigPath, "config file (yaml)")

	root.AddCommand(
		newServeCmd(e),
		newMigrateCmd(e),
		newSeedCmd(e),
		newRecomputeCmd(e),
		newTokenCmd(e),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// open: DB接続（呼び出し側で Close）
func (e *env) open() (*sql.DB, db.Dialect, error) {
	conn, err := db.Connect(e.cfg.DB)
	if err != nil {
		return nil, "", err
	}
	e.log.Info().Str("driver", e.cfg.DB.Driver).Str("db", e.dbName()).Msg("connected to DB")
	return conn, db.Dialect(e.cfg.DB.Driver), nil
}

func (e *env) dbName() string {
	if db.Dialect(e.cfg.DB.Driver) == db.SQLite {
		return e.cfg.DB.Path
	}
	return e.cfg.DB.DBName
}

func (e *env) app(conn *sql.DB) (*app.App, error) {
	return app.New(e.cfg, conn, e.log, nil)
}
