package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"michibiblio-backend/internal/platform/auth"
	"michibiblio-backend/internal/platform/clock"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/dbtest"
)

const secret = "test-secret-0123456789"

type client struct {
	t      *testing.T
	router *gin.Engine
}

func newClient(t *testing.T) *client {
	return newClientWith(t, []string{"http://localhost:3000"})
}

func newClientWith(t *testing.T, origins []string) *client {
	cfg := &db.Config{
		Mode:    "dev",
		Server:  db.ServerConfig{Addr: ":0", CORSOrigins: origins},
		DB:      db.DatabaseConfig{Driver: string(db.SQLite)},
		Auth:    db.AuthConfig{JWTSecret: secret, Issuer: "test"},
		Library: db.LibraryConfig{Timezone: "UTC", DefaultLoanDays: 14},
	}
	clk := clock.On(civil.Date{Year: 2025, Month: time.May, Day: 10})
	a, err := New(cfg, dbtest.Open(t), zerolog.Nop(), clk)
	require.NoError(t, err)
	return &client{t: t, router: a.Router()}
}

func (c *client) token(role auth.Role) string {
	tok, err := auth.IssueToken([]byte(secret), "test", auth.Identity{Subject: string(role) + "-1", Role: role}, time.Hour, time.Now())
	require.NoError(c.t, err)
	return tok
}

func (c *client) do(method, path string, role auth.Role, body any) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+c.token(role))
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func errCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e["code"].(string)
	return s
}

const (
	op  = auth.RoleOperator
	sup = auth.RoleSupervisor
)

func TestHealthAndAuth(t *testing.T) {
	c := newClient(t)

	w, _ := c.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, body := c.do(http.MethodGet, "/api/v1/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", errCode(body))

	w, _ = c.do(http.MethodGet, "/api/v1/books", op, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 管理者専用
	w, body = c.do(http.MethodPost, "/api/v1/categories", op, map[string]any{"name": "Novela"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errCode(body))
	w, _ = c.do(http.MethodGet, "/api/v1/reports/loans", op, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoanFlow(t *testing.T) {
	c := newClient(t)

	w, cat := c.do(http.MethodPost, "/api/v1/categories", sup, map[string]any{"name": "Novela"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, book := c.do(http.MethodPost, "/api/v1/books", sup, map[string]any{
		"title": "Rayuela", "author": "Julio Cortázar", "category_id": cat["category_id"], "total_copies": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/books/1", w.Header().Get("Location"))

	// 利用者を同時登録して貸出
	w, loan := c.do(http.MethodPost, "/api/v1/loans", op, map[string]any{
		"book_id":    book["book_id"],
		"new_reader": map[string]any{"name": "Ana", "surname": "García", "dni": "20000001", "phone": "1144445555"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "LENT", loan["state"])
	assert.Equal(t, "2025-05-10", loan["loan_date"])
	assert.Equal(t, "2025-05-24", loan["estimated_return_date"])
	assert.Equal(t, "operator-1", loan["created_by"])
	loanPath := w.Header().Get("Location")
	require.NotEmpty(t, loanPath)

	w, b := c.do(http.MethodGet, "/api/v1/books/1", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, b["available_copies"])

	// 在庫なし
	w, body := c.do(http.MethodPost, "/api/v1/loans", op, map[string]any{
		"book_id":    book["book_id"],
		"new_reader": map[string]any{"name": "Juan", "surname": "Pérez", "dni": "20000002", "email": "juan@example.com"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", errCode(body))
	assert.Contains(t, w.Body.String(), "no_copies_available")

	// ULID でも取得できる
	w, got := c.do(http.MethodGet, "/api/v1/loans/"+loan["loan_ulid"].(string), op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, loan["loan_id"], got["loan_id"])

	w, ret := c.do(http.MethodPost, "/api/v1"+loanPath+"/return", op, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "RETURNED", ret["state"])
	assert.Equal(t, "2025-05-10", ret["actual_return_date"])

	w, body = c.do(http.MethodPost, "/api/v1"+loanPath+"/return", op, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", errCode(body))

	w, list := c.do(http.MethodGet, "/api/v1/loans?state=returned", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, list["total"])

	// 貸出履歴のある書籍は削除不可
	w, body = c.do(http.MethodDelete, "/api/v1/books/1", sup, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "REFERENTIAL_INTEGRITY", errCode(body))

	w, rep := c.do(http.MethodGet, "/api/v1/reports/loans?from=2025-05-01&to=2025-05-31", sup, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, rep["total_loans"])

	w, _ = c.do(http.MethodPost, "/api/v1/books/1/recompute", op, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, rc := c.do(http.MethodPost, "/api/v1/books/1/recompute", sup, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, rc["available_copies"])
	assert.Equal(t, false, rc["changed"])
}

func TestDashboardByRole(t *testing.T) {
	c := newClient(t)

	w, body := c.do(http.MethodGet, "/api/v1/dashboard", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["supervisor"])
	assert.Nil(t, body["summary"])
	assert.Equal(t, "2025-05-03", body["since"])

	w, body = c.do(http.MethodGet, "/api/v1/dashboard", sup, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["supervisor"])
	assert.Len(t, body["summary"], 4)

	w, _ = c.do(http.MethodGet, "/api/v1/reports/loans?from=yesterday", sup, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_CORS(t *testing.T) {
	preflight := func(c *client) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/books", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		c.router.ServeHTTP(w, req)
		return w
	}

	w := preflight(newClient(t))
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	// origins 未設定の dev 構成でもルーターは組み立てられる（CORS なし）
	var c *client
	require.NotPanics(t, func() { c = newClientWith(t, nil) })
	w = preflight(c)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w, _ = c.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
