package reports

import (
	"cloud.google.com/go/civil"

	"michibiblio-backend/internal/loans"
	"michibiblio-backend/internal/platform/db"
)

// Filter: 全て任意。期間は貸出日で絞る（両端含む）。
type Filter struct {
	State      *loans.State
	CategoryID *int64
	From       *civil.Date
	To         *civil.Date
}

// loanRow は集計クエリ1行分（sqlx でスキャン）
type loanRow struct {
	LoanID              int64       `db:"loan_id"`
	LoanULID            string      `db:"loan_ulid"`
	BookID              int64       `db:"book_id"`
	BookTitle           string      `db:"book_title"`
	BookAuthor          string      `db:"book_author"`
	ReaderID            int64       `db:"reader_id"`
	ReaderName          string      `db:"reader_name"`
	ReaderSurname       string      `db:"reader_surname"`
	ReaderDNI           string      `db:"reader_dni"`
	CategoryName        string      `db:"category_name"`
	State               string      `db:"state"`
	LoanDate            db.NullDate `db:"loan_date"`
	EstimatedReturnDate db.NullDate `db:"estimated_return_date"`
	ActualReturnDate    db.NullDate `db:"actual_return_date"`
}

type stateTotal struct {
	State string `db:"state"`
	Total int64  `db:"total"`
}
