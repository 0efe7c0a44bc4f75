package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"michibiblio-backend/internal/platform/db"
)

func newServeCmd(e *env) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn, d, err := e.open()
			if err != nil {
				return err
			}
			defer conn.Close()

			if migrate {
				if err := db.Migrate(ctx, conn, d, "up"); err != nil {
					return err
				}
			}

			a, err := e.app(conn)
			if err != nil {
				return err
			}
			e.log.Info().Str("mode", e.cfg.Mode).Str("version", e.cfg.Version).Msg("starting")

			srv := &http.Server{
				Addr:              e.cfg.Server.Addr,
				Handler:           a.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				e.log.Info().Str("addr", srv.Addr).Msg("listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			// Graceful shutdown
			e.log.Info().Msg("shutting down...")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}
