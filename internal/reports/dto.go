package reports

import (
	"cloud.google.com/go/civil"

	"michibiblio-backend/internal/loans"
	"michibiblio-backend/internal/readers"
)

type StateCount struct {
	State      loans.State `json:"state"`
	StateLabel string      `json:"state_label"`
	Total      int64       `json:"total"`
}

type LoanRow struct {
	LoanID              int64       `json:"loan_id"`
	LoanULID            string      `json:"loan_ulid"`
	BookID              int64       `json:"book_id"`
	BookLabel           string      `json:"book_label"`
	ReaderID            int64       `json:"reader_id"`
	ReaderLabel         string      `json:"reader_label"`
	State               loans.State `json:"state"`
	StateLabel          string      `json:"state_label"`
	LoanDate            civil.Date  `json:"loan_date"`
	EstimatedReturnDate civil.Date  `json:"estimated_return_date"`
	ActualReturnDate    *civil.Date `json:"actual_return_date,omitempty"`
	Category            string      `json:"category"`
	IsOverdue           bool        `json:"is_overdue"`
}

type FilterEcho struct {
	State      *loans.State `json:"state,omitempty"`
	CategoryID *int64       `json:"category_id,omitempty"`
	From       *civil.Date  `json:"from,omitempty"`
	To         *civil.Date  `json:"to,omitempty"`
}

type ReportResponse struct {
	Filters    FilterEcho   `json:"filters"`
	Summary    []StateCount `json:"summary"`
	TotalLoans int64        `json:"total_loans"`
	TotalLate  int64        `json:"total_late"`
	Items      []LoanRow    `json:"items"`
	NextOffset int          `json:"next_offset"`
}

// DashboardResponse: Summary と RecentLate は管理者のみ（それ以外は null）
type DashboardResponse struct {
	Supervisor   bool         `json:"supervisor"`
	Today        civil.Date   `json:"today"`
	Since        civil.Date   `json:"since"`
	RecentActive []LoanRow    `json:"recent_active"`
	Summary      []StateCount `json:"summary"`
	RecentLate   []LoanRow    `json:"recent_late"`
}

func toLoanRow(r *loanRow, today civil.Date) LoanRow {
	st := loans.State(r.State)
	return LoanRow{
		LoanID:              r.LoanID,
		LoanULID:            r.LoanULID,
		BookID:              r.BookID,
		BookLabel:           r.BookTitle + " (" + r.BookAuthor + ")",
		ReaderID:            r.ReaderID,
		ReaderLabel:         readers.Label(r.ReaderName, r.ReaderSurname, r.ReaderDNI),
		State:               st,
		StateLabel:          st.Label(),
		LoanDate:            r.LoanDate.Date,
		EstimatedReturnDate: r.EstimatedReturnDate.Date,
		ActualReturnDate:    r.ActualReturnDate.Ptr(),
		Category:            r.CategoryName,
		IsOverdue:           loans.IsOverdue(st, r.EstimatedReturnDate.Date, today),
	}
}

// 件数0の状態も含めて固定順で返す
func toStateCounts(rows []stateTotal) []StateCount {
	m := make(map[string]int64, len(rows))
	for _, r := range rows {
		m[r.State] = r.Total
	}
	out := make([]StateCount, 0, len(loans.States))
	for _, st := range loans.States {
		out = append(out, StateCount{State: st, StateLabel: st.Label(), Total: m[string(st)]})
	}
	return out
}
