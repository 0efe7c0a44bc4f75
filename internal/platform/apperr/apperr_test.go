package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/dbtest"
)

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Invalid("x"), http.StatusBadRequest},
		{&apperr.Error{Code: apperr.CodeUnauthenticated}, http.StatusUnauthorized},
		{apperr.Forbidden("x"), http.StatusForbidden},
		{apperr.NotFound("x"), http.StatusNotFound},
		{apperr.Conflict("x"), http.StatusConflict},
		{apperr.Referenced("x"), http.StatusConflict},
		{apperr.Transition("x"), http.StatusConflict},
		{apperr.Concurrency("x"), http.StatusConflict},
		{fmt.Errorf("wrap: %w", apperr.NotFound("x")), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, apperr.ToHTTPStatus(c.err), "%v", c.err)
	}
	assert.Equal(t, apperr.Code(""), apperr.CodeOf(nil))
}

func TestValidation(t *testing.T) {
	assert.NoError(t, apperr.Validation(nil))

	err := apperr.Validation([]apperr.Violation{
		{Field: "book_id", Rule: "required", Message: "is required"},
		{Field: "loan_date", Rule: "required", Message: "is required"},
	})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalidArgument, e.Code)
	assert.True(t, e.HasRule("loan_date", "required"))
	assert.False(t, e.HasRule("loan_date", "before_loan_date"))
	assert.Equal(t, "book_id: is required; loan_date: is required", e.Message)
}

func TestBodyFrom_HidesInternal(t *testing.T) {
	b := apperr.BodyFrom(errors.New("dial tcp 10.0.0.1:3306: refused"))
	assert.Equal(t, apperr.CodeInternal, b.Error.Code)
	assert.Equal(t, "internal error", b.Error.Message)

	b = apperr.BodyFrom(apperr.Validation([]apperr.Violation{{Field: "dni", Rule: "required"}}))
	assert.Equal(t, apperr.CodeInvalidArgument, b.Error.Code)
	assert.Len(t, b.Error.Violations, 1)
}

func TestFromDB_MySQL(t *testing.T) {
	cases := map[uint16]apperr.Code{
		1062: apperr.CodeConflict,
		1451: apperr.CodeReferentialIntegrity,
		1452: apperr.CodeInvalidArgument,
		1213: apperr.CodeConcurrencyConflict,
		1205: apperr.CodeConcurrencyConflict,
	}
	for n, want := range cases {
		err := apperr.FromDB(&mysql.MySQLError{Number: n}, "reader")
		assert.Equal(t, want, apperr.CodeOf(err), "mysql %d", n)
	}
	assert.True(t, apperr.IsDuplicate(&mysql.MySQLError{Number: 1062}))

	other := &mysql.MySQLError{Number: 1146}
	assert.Same(t, other, apperr.FromDB(other, "reader"))
	assert.NoError(t, apperr.FromDB(nil, "reader"))
}

func TestFromDB_SQLite(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)

	const ins = `INSERT INTO readers (name, surname, dni) VALUES ('Ana', 'García', '20000001')`
	_, err := conn.ExecContext(ctx, ins)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, ins)
	require.Error(t, err)
	assert.True(t, apperr.IsDuplicate(err))
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(apperr.FromDB(err, "reader")))

	_, err = conn.ExecContext(ctx, `INSERT INTO books (title, author, category_id) VALUES ('T', 'A', 999)`)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeReferentialIntegrity, apperr.CodeOf(apperr.FromDB(err, "book")))

	// 既に分類済みならそのまま
	nf := apperr.NotFound("x")
	assert.Same(t, nf, apperr.FromDB(nf, "book"))
}
