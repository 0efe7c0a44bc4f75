package catalog

import (
	"database/sql"
	"time"

	"michibiblio-backend/internal/platform/db"
)

// Category は categories テーブルの1行
type Category struct {
	CategoryID  int64
	Name        string
	Description string
	Active      bool
	CreatedAt   time.Time
}

// Book は books テーブルの1行。AvailableCopies は貸出から導出される値で、直接は更新しない。
type Book struct {
	BookID          int64
	Title           string
	Author          string
	ISBN            sql.NullString
	PublishedOn     db.NullDate
	CategoryID      int64
	CategoryName    string
	TotalCopies     int
	AvailableCopies int
	Active          bool
	CreatedAt       time.Time
}

type BookQuery struct {
	Q               string
	CategoryID      *int64
	IncludeInactive bool
}
