package loans

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"michibiblio-backend/internal/platform/apperr"
)

func day(m time.Month, d int) civil.Date { return civil.Date{Year: 2024, Month: m, Day: d} }

func newLent() Loan {
	return Loan{
		BookID:              1,
		ReaderID:            1,
		LoanDate:            day(time.March, 1),
		EstimatedReturnDate: day(time.March, 15),
		State:               StateLent,
	}
}

func requireRule(t *testing.T, err error, field, rule string) {
	t.Helper()
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %T", err)
	assert.Equal(t, apperr.CodeInvalidArgument, e.Code)
	assert.True(t, e.HasRule(field, rule), "violations: %+v", e.Violations)
}

func TestValidate_OK(t *testing.T) {
	err := Validate(newLent(), ValidationContext{IsNew: true, BookTotal: 2, OtherActiveForBook: 1})
	assert.NoError(t, err)
}

func TestValidate_CapacityBoundary(t *testing.T) {
	l := newLent()
	// 1冊残り → OK
	assert.NoError(t, Validate(l, ValidationContext{IsNew: true, BookTotal: 3, OtherActiveForBook: 2}))
	// 満杯 → NG
	requireRule(t, Validate(l, ValidationContext{IsNew: true, BookTotal: 3, OtherActiveForBook: 3}),
		"book_id", "no_copies_available")
}

func TestValidate_CapacityIgnoredForNonLent(t *testing.T) {
	l := newLent()
	l.State = StateReturned
	assert.NoError(t, Validate(l, ValidationContext{BookTotal: 1, OtherActiveForBook: 1}))

	l.State = StateLate
	assert.NoError(t, Validate(l, ValidationContext{BookTotal: 1, OtherActiveForBook: 1}))

	// 取込時は LATE も容量を満たすこと
	requireRule(t, Validate(l, ValidationContext{IsNew: true, BookTotal: 1, OtherActiveForBook: 1, CapacityForAllActive: true}),
		"book_id", "no_copies_available")
}

func TestValidate_ReaderWithLateLoan(t *testing.T) {
	l := newLent()
	requireRule(t, Validate(l, ValidationContext{IsNew: true, BookTotal: 5, ReaderLateLoans: 1}),
		"reader_id", "reader_has_late_loan")

	// 既存貸出の更新には適用しない
	assert.NoError(t, Validate(l, ValidationContext{IsNew: false, BookTotal: 5, ReaderLateLoans: 1}))
}

func TestValidate_DateOrdering(t *testing.T) {
	l := newLent()
	l.EstimatedReturnDate = day(time.February, 28)
	requireRule(t, Validate(l, ValidationContext{IsNew: true, BookTotal: 5}),
		"estimated_return_date", "before_loan_date")

	// 同日はOK
	l.EstimatedReturnDate = l.LoanDate
	assert.NoError(t, Validate(l, ValidationContext{IsNew: true, BookTotal: 5}))
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	l := newLent()
	l.EstimatedReturnDate = day(time.February, 1)
	err := Validate(l, ValidationContext{IsNew: true, BookTotal: 1, OtherActiveForBook: 1, ReaderLateLoans: 2})

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Len(t, e.Violations, 3)
	assert.True(t, e.HasRule("estimated_return_date", "before_loan_date"))
	assert.True(t, e.HasRule("reader_id", "reader_has_late_loan"))
	assert.True(t, e.HasRule("book_id", "no_copies_available"))
}

func TestValidate_RequiredFields(t *testing.T) {
	err := Validate(Loan{State: "BORROWED"}, ValidationContext{})
	requireRule(t, err, "state", "invalid")
	requireRule(t, err, "book_id", "required")
	requireRule(t, err, "loan_date", "required")
	requireRule(t, err, "estimated_return_date", "required")
}
