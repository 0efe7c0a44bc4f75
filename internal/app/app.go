// Package app は設定・DB・各サービスを組み立てて HTTP ルーターを作る。
package app

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"michibiblio-backend/internal/catalog"
	"michibiblio-backend/internal/loans"
	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/auth"
	"michibiblio-backend/internal/platform/clock"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/logger"
	"michibiblio-backend/internal/readers"
	"michibiblio-backend/internal/reports"
)

type App struct {
	Config  *db.Config
	DB      *sql.DB
	Dialect db.Dialect
	Log     zerolog.Logger
	Policy  auth.Policy

	Catalog *catalog.Service
	Readers *readers.Service
	Loans   *loans.Service
	Reports *reports.Service
}

// New: clk が nil なら実時計
func New(cfg *db.Config, conn *sql.DB, log zerolog.Logger, clk clock.Clock) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	if clk == nil {
		clk = clock.Real{}
	}
	d := db.Dialect(cfg.DB.Driver)

	return &App{
		Config:  cfg,
		DB:      conn,
		Dialect: d,
		Log:     log,
		Policy:  auth.DefaultPolicy(),
		Catalog: catalog.NewService(conn, d),
		Readers: readers.NewService(conn),
		Loans: loans.NewService(conn, d, loans.Options{
			Clock:           clk,
			Location:        loc,
			DefaultLoanDays: cfg.Library.DefaultLoanDays,
		}),
		Reports: reports.NewService(conn, d, clk, loc),
	}, nil
}

func (a *App) Router() *gin.Engine {
	if a.Config.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(a.Log))
	_ = r.SetTrustedProxies(nil)

	if a.Config.Mode == "dev" && len(a.Config.Server.CORSOrigins) > 0 {
		// CORS（開発中のみ必要。origins 未設定なら付けない）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     a.Config.Server.CORSOrigins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.HeaderRequestID},
			ExposeHeaders:    []string{"Content-Length", "Location", logger.HeaderRequestID},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) {
		if err := a.DB.PingContext(c.Request.Context()); err != nil {
			apperr.Respond(c, err)
			return
		}
		c.String(http.StatusOK, "ok")
	})

	// /api/v1
	api := r.Group("/api/v1")
	api.Use(auth.RequireAuth([]byte(a.Config.Auth.JWTSecret)))
	catalog.RegisterRoutes(api, a.Catalog, a.Policy)
	readers.RegisterRoutes(api, a.Readers, a.Policy)
	loans.RegisterRoutes(api, a.Loans, a.Policy)
	reports.RegisterRoutes(api, a.Reports, a.Policy)

	r.NoRoute(func(c *gin.Context) {
		apperr.Respond(c, apperr.NotFound("route not found"))
	})
	return r
}
