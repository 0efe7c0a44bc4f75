package loans

import "michibiblio-backend/internal/platform/apperr"

// ValidationContext は Validate が参照する永続化済みの状態。
// ストアが書籍行ロック後に同じTx内で数える。
type ValidationContext struct {
	IsNew              bool // 新規作成か
	ReaderLateLoans    int  // 利用者の LATE 件数
	OtherActiveForBook int  // 同じ書籍の他の貸出中件数（自身を除く）
	BookTotal          int  // 書籍の総冊数

	// 取込時は LATE も在庫を占有するので容量を満たすこと
	CapacityForAllActive bool
}

// Validate は書き込み前に必ず呼ぶ。違反はすべて集めて1つのエラーで返す。
func Validate(l Loan, vc ValidationContext) error {
	var vs []apperr.Violation

	if !l.State.Valid() {
		vs = append(vs, apperr.Violation{Field: "state", Rule: "invalid", Message: "unknown loan state"})
	}
	if l.BookID <= 0 {
		vs = append(vs, apperr.Violation{Field: "book_id", Rule: "required", Message: "book_id is required"})
	}
	if l.LoanDate.IsZero() || !l.LoanDate.IsValid() {
		vs = append(vs, apperr.Violation{Field: "loan_date", Rule: "required", Message: "loan_date is required"})
	}
	if l.EstimatedReturnDate.IsZero() || !l.EstimatedReturnDate.IsValid() {
		vs = append(vs, apperr.Violation{Field: "estimated_return_date", Rule: "required", Message: "estimated_return_date is required"})
	} else if l.EstimatedReturnDate.Before(l.LoanDate) {
		vs = append(vs, apperr.Violation{
			Field:   "estimated_return_date",
			Rule:    "before_loan_date",
			Message: "estimated_return_date must not be earlier than loan_date",
		})
	}

	if vc.IsNew && l.State == StateLent && vc.ReaderLateLoans > 0 {
		vs = append(vs, apperr.Violation{
			Field:   "reader_id",
			Rule:    "reader_has_late_loan",
			Message: "reader has late loans and cannot borrow until they are resolved",
		})
	}

	occupies := l.State == StateLent || (vc.CapacityForAllActive && l.State.Active())
	if occupies && vc.OtherActiveForBook >= vc.BookTotal {
		vs = append(vs, apperr.Violation{
			Field:   "book_id",
			Rule:    "no_copies_available",
			Message: "no copies of this book are available",
		})
	}

	return apperr.Validation(vs)
}
