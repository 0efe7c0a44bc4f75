package loans

import (
	"database/sql"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/db"
)

type State string

const (
	StateLent     State = "LENT"
	StateReturned State = "RETURNED"
	StateLate     State = "LATE"
	StateStolen   State = "STOLEN"
)

// 集計・表示の並び順
var States = []State{StateLent, StateReturned, StateLate, StateStolen}

func (s State) Valid() bool {
	switch s {
	case StateLent, StateReturned, StateLate, StateStolen:
		return true
	}
	return false
}

// Active: 在庫を占有している状態
func (s State) Active() bool { return s == StateLent || s == StateLate }

// Terminal: これ以上遷移しない状態
func (s State) Terminal() bool { return s == StateReturned || s == StateStolen }

func (s State) Label() string {
	switch s {
	case StateLent:
		return "Lent"
	case StateReturned:
		return "Returned"
	case StateLate:
		return "Late"
	case StateStolen:
		return "Stolen"
	}
	return string(s)
}

// Loan は loans テーブルの1行
type Loan struct {
	LoanID              int64
	LoanULID            string
	BookID              int64
	ReaderID            int64
	LoanDate            civil.Date
	EstimatedReturnDate civil.Date
	ActualReturnDate    db.NullDate
	State               State
	Comments            string
	CreatedBy           sql.NullString
	CreatedAt           time.Time
}

// IsOverdue: LATE、または LENT で返却予定日を過ぎている
func (l *Loan) IsOverdue(today civil.Date) bool {
	return IsOverdue(l.State, l.EstimatedReturnDate, today)
}

func IsOverdue(state State, estimated, today civil.Date) bool {
	return state == StateLate || (state == StateLent && today.After(estimated))
}

// Return: 返却。予定日を過ぎていれば LATE、そうでなければ RETURNED。
// LATE からの再返却も同じ判定（再入可）。
func (l *Loan) Return(today civil.Date) error {
	if l.State.Terminal() {
		return apperr.Transition(fmt.Sprintf("loan is %s and cannot be returned", l.State))
	}
	if today.After(l.EstimatedReturnDate) {
		l.State = StateLate
	} else {
		l.State = StateReturned
	}
	l.ActualReturnDate = db.NewNullDate(today)
	return nil
}

// MarkStolen: 盗難。返却日は今日（在庫から外れる）。
func (l *Loan) MarkStolen(today civil.Date) error {
	if l.State.Terminal() {
		return apperr.Transition(fmt.Sprintf("loan is %s and cannot be marked stolen", l.State))
	}
	l.State = StateStolen
	l.ActualReturnDate = db.NewNullDate(today)
	return nil
}

// 一覧取得用の検索条件
type LoanFilter struct {
	State    *State
	ReaderID *int64
	BookID   *int64
}
