package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup はルートロガーを作りグローバルにも設定する。
// format: console | json
func Setup(app, level, format string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}

// Audit は書き込み操作の監査ログ。ctx にリクエストロガーがあればそれを使う。
func Audit(ctx context.Context, action string) *zerolog.Event {
	return zerolog.Ctx(ctx).Info().Str("audit", action)
}
