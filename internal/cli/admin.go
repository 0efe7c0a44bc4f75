package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"michibiblio-backend/internal/platform/auth"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/seed"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|reset|version]",
		Short:     "Run schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "reset", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			conn, d, err := e.open()
			if err != nil {
				return err
			}
			defer conn.Close()
			return db.Migrate(cmd.Context(), conn, d, command)
		},
	}
}

func newSeedCmd(e *env) *cobra.Command {
	var (
		fixtures string
		rnd      int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Wipe library tables and load demo data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg.Mode == "release" {
				return errors.New("seed is disabled in release mode")
			}
			f, err := seed.LoadFixtures(fixtures)
			if err != nil {
				return err
			}
			conn, d, err := e.open()
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(cmd.Context(), conn, d, "up"); err != nil {
				return err
			}

			a, err := e.app(conn)
			if err != nil {
				return err
			}
			if rnd == 0 {
				rnd = time.Now().UnixNano()
			}
			res, err := seed.NewSeeder(conn, a.Catalog, a.Readers, a.Loans, rnd).Run(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "fixtures yaml (default: built-in)")
	cmd.Flags().Int64Var(&rnd, "seed", 0, "random seed (default: current time)")
	return cmd
}

func newRecomputeCmd(e *env) *cobra.Command {
	var bookID int64
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute available copies from loans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, _, err := e.open()
			if err != nil {
				return err
			}
			defer conn.Close()
			a, err := e.app(conn)
			if err != nil {
				return err
			}

			if bookID > 0 {
				res, err := a.Loans.RecomputeAvailability(cmd.Context(), bookID)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}

			all, err := a.Loans.RecomputeAll(cmd.Context())
			if err != nil {
				return err
			}
			changed := 0
			for _, r := range all {
				if r.Changed {
					changed++
				}
			}
			e.log.Info().Int("books", len(all)).Int("repaired", changed).Msg("recompute finished")
			return nil
		},
	}
	cmd.Flags().Int64Var(&bookID, "book", 0, "only this book id")
	return cmd
}

// token: 開発用のトークン発行。本番の認証は外部で行う。
func newTokenCmd(e *env) *cobra.Command {
	var (
		sub  string
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg.Mode != "dev" {
				return errors.New("token is only available in dev mode")
			}
			tok, err := auth.IssueToken([]byte(e.cfg.Auth.JWTSecret), e.cfg.Auth.Issuer,
				auth.Identity{Subject: sub, Role: auth.Role(role)}, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "subject (user id)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "operator | supervisor")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
