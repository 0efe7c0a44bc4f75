// Package httpx は各 handler で共有するクエリ解析とページングの補助。
package httpx

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"michibiblio-backend/internal/platform/apperr"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Page struct {
	Limit  int
	Offset int
}

// Normalize: 既定値と上限を適用
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// List は一覧レスポンスの共通形
type List[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	NextOffset int   `json:"next_offset"`
}

func NewList[T any](items []T, total int64, p Page) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Total: total, NextOffset: NextOffset(total, p)}
}

// 次ページが無ければ 0
func NextOffset(total int64, p Page) int {
	n := p.Offset + p.Limit
	if n >= int(total) {
		return 0
	}
	return n
}

func ParseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func PageFrom(c *gin.Context) Page {
	return Page{
		Limit:  ParseIntDefault(c.Query("limit"), DefaultLimit),
		Offset: ParseIntDefault(c.Query("offset"), 0),
	}.Normalize()
}

// ParamID: パスパラメータを正の int64 として読む
func ParamID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid " + name)
	}
	return id, nil
}

// QueryID: 任意のクエリパラメータ。未指定なら nil。
func QueryID(c *gin.Context, name string) (*int64, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.Invalid("invalid " + name)
	}
	return &id, nil
}

func ParseBoolish(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "1" || s == "true" || s == "yes" || s == "all"
}
