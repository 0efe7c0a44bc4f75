package loans

import (
	"time"

	"cloud.google.com/go/civil"

	"michibiblio-backend/internal/inventory"
	"michibiblio-backend/internal/readers"
)

// ===== Requests =====

// CreateLoanRequest: reader_id か new_reader のどちらか一方を指定する
type CreateLoanRequest struct {
	BookID              int64                        `json:"book_id"`
	ReaderID            *int64                       `json:"reader_id,omitempty"`
	NewReader           *readers.CreateReaderRequest `json:"new_reader,omitempty"`
	LoanDate            *civil.Date                  `json:"loan_date,omitempty"`             // 未指定なら今日
	EstimatedReturnDate *civil.Date                  `json:"estimated_return_date,omitempty"` // 未指定なら loan_date + 既定日数
	Comments            *string                      `json:"comments,omitempty"`
}

// ImportLoanRequest: 任意の状態で貸出を取り込む（シード・移行用）
type ImportLoanRequest struct {
	BookID              int64
	ReaderID            int64
	LoanDate            civil.Date
	EstimatedReturnDate civil.Date
	ActualReturnDate    *civil.Date
	State               State
	Comments            string
}

// ===== Responses =====

type LoanResponse struct {
	LoanID              int64       `json:"loan_id"`
	LoanULID            string      `json:"loan_ulid"`
	BookID              int64       `json:"book_id"`
	BookTitle           string      `json:"book_title,omitempty"`
	ReaderID            int64       `json:"reader_id"`
	ReaderLabel         string      `json:"reader_label,omitempty"`
	LoanDate            civil.Date  `json:"loan_date"`
	EstimatedReturnDate civil.Date  `json:"estimated_return_date"`
	ActualReturnDate    *civil.Date `json:"actual_return_date,omitempty"`
	State               State       `json:"state"`
	StateLabel          string      `json:"state_label"`
	IsOverdue           bool        `json:"is_overdue"`
	Comments            string      `json:"comments"`
	CreatedBy           *string     `json:"created_by,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
}

type RecomputeResult struct {
	inventory.Counts
	Previous int  `json:"previous_available"`
	Changed  bool `json:"changed"`
}

// loanView は一覧・詳細用（書籍名と利用者表示名つき）
type loanView struct {
	Loan
	BookTitle   string
	ReaderLabel string
}

func buildLoanResponse(v *loanView, today civil.Date) LoanResponse {
	l := &v.Loan
	resp := LoanResponse{
		LoanID:              l.LoanID,
		LoanULID:            l.LoanULID,
		BookID:              l.BookID,
		BookTitle:           v.BookTitle,
		ReaderID:            l.ReaderID,
		ReaderLabel:         v.ReaderLabel,
		LoanDate:            l.LoanDate,
		EstimatedReturnDate: l.EstimatedReturnDate,
		ActualReturnDate:    l.ActualReturnDate.Ptr(),
		State:               l.State,
		StateLabel:          l.State.Label(),
		IsOverdue:           l.IsOverdue(today),
		Comments:            l.Comments,
		CreatedAt:           l.CreatedAt,
	}
	if l.CreatedBy.Valid {
		by := l.CreatedBy.String
		resp.CreatedBy = &by
	}
	return resp
}
