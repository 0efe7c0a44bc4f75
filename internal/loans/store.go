package loans

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"michibiblio-backend/internal/inventory"
	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/httpx"
	"michibiblio-backend/internal/readers"
)

type Store struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewStore(conn *sql.DB, d db.Dialect) *Store { return &Store{db: conn, dialect: d} }

const loanCols = `
	l.loan_id, l.loan_ulid, l.book_id, l.reader_id, l.loan_date, l.estimated_return_date,
	l.actual_return_date, l.state, l.comments, l.created_by, l.created_at`

func scanLoan(row interface{ Scan(...any) error }, extra ...any) (*Loan, error) {
	var (
		l             Loan
		loanDate, est db.NullDate
		state         string
	)
	dest := []any{
		&l.LoanID, &l.LoanULID, &l.BookID, &l.ReaderID, &loanDate, &est,
		&l.ActualReturnDate, &state, &l.Comments, &l.CreatedBy, &l.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	l.LoanDate, l.EstimatedReturnDate, l.State = loanDate.Date, est.Date, State(state)
	return &l, nil
}

func getLoanTx(ctx context.Context, tx db.DBTX, id int64, lock string) (*Loan, error) {
	l, err := scanLoan(tx.QueryRowContext(ctx, `SELECT `+loanCols+` FROM loans l WHERE l.loan_id = ?`+lock, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("loan not found")
		}
		return nil, err
	}
	return l, nil
}

// ---- Transactional Methods ----

// ExecCreate: 書籍行ロック → 件数取得 → Validate → (利用者登録) → INSERT → 在庫再計算 を1Txで行う。
// newReader が nil でなければ同じTxで登録し、その ID で貸出を作る。
func (s *Store) ExecCreate(ctx context.Context, l *Loan, newReader *readers.Reader, importing bool) (inventory.Counts, error) {
	var counts inventory.Counts
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		// 1. Lock book row
		book, err := inventory.LockBookTx(ctx, tx, s.dialect, l.BookID)
		if err != nil {
			return err
		}

		// 2. Gather validation inputs
		rs := readers.NewStore(tx)
		vc := ValidationContext{IsNew: true, BookTotal: book.Total, CapacityForAllActive: importing}
		if newReader == nil {
			if _, err := rs.Get(ctx, l.ReaderID); err != nil {
				return err
			}
			if vc.ReaderLateLoans, err = rs.CountLate(ctx, l.ReaderID); err != nil {
				return err
			}
		}
		if vc.OtherActiveForBook, err = inventory.CountActiveTx(ctx, tx, l.BookID, 0); err != nil {
			return err
		}

		// 3. Validate before any write
		if err := Validate(*l, vc); err != nil {
			return err
		}

		// 4. Insert reader (bundle)
		if newReader != nil {
			if err := rs.Insert(ctx, newReader); err != nil {
				return err
			}
			l.ReaderID = newReader.ReaderID
		}

		// 5. Insert loan
		if err := insertLoanTx(ctx, tx, l); err != nil {
			return err
		}

		// 6. Recompute availability
		counts, err = inventory.RecomputeTx(ctx, tx, l.BookID, book.Total)
		return err
	})
	return counts, err
}

func insertLoanTx(ctx context.Context, tx db.DBTX, l *Loan) error {
	const q = `
	INSERT INTO loans
	(loan_ulid, book_id, reader_id, loan_date, estimated_return_date, actual_return_date, state, comments, created_by, created_at, updated_at)
	VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		l.LoanULID, l.BookID, l.ReaderID,
		db.NewNullDate(l.LoanDate), db.NewNullDate(l.EstimatedReturnDate), l.ActualReturnDate,
		string(l.State), l.Comments, l.CreatedBy, l.CreatedAt, l.CreatedAt,
	)
	if err != nil {
		return apperr.FromDB(err, "loan")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.LoanID = id
	return nil
}

// ExecTransition: 貸出の状態遷移。apply が状態と返却日を書き換え、Validate 後に保存・在庫再計算する。
func (s *Store) ExecTransition(ctx context.Context, loanID int64, now time.Time, apply func(l *Loan) error) (*Loan, inventory.Counts, error) {
	var (
		out    *Loan
		counts inventory.Counts
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		// book_id は不変なので先に読んでから書籍→貸出の順でロックする
		cur, err := getLoanTx(ctx, tx, loanID, "")
		if err != nil {
			return err
		}
		book, err := inventory.LockBookTx(ctx, tx, s.dialect, cur.BookID)
		if err != nil {
			return err
		}
		l, err := getLoanTx(ctx, tx, loanID, s.dialect.ForUpdate())
		if err != nil {
			return err
		}

		if err := apply(l); err != nil {
			return err
		}

		other, err := inventory.CountActiveTx(ctx, tx, l.BookID, l.LoanID)
		if err != nil {
			return err
		}
		if err := Validate(*l, ValidationContext{OtherActiveForBook: other, BookTotal: book.Total}); err != nil {
			return err
		}

		const q = `UPDATE loans SET state = ?, actual_return_date = ?, updated_at = ? WHERE loan_id = ?`
		if _, err := tx.ExecContext(ctx, q, string(l.State), l.ActualReturnDate, now, l.LoanID); err != nil {
			return apperr.FromDB(err, "loan")
		}

		counts, err = inventory.RecomputeTx(ctx, tx, l.BookID, book.Total)
		out = l
		return err
	})
	if err != nil {
		return nil, inventory.Counts{}, err
	}
	return out, counts, nil
}

// Recompute: 単独の在庫修復
func (s *Store) Recompute(ctx context.Context, bookID int64) (RecomputeResult, error) {
	var res RecomputeResult
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		book, err := inventory.LockBookTx(ctx, tx, s.dialect, bookID)
		if err != nil {
			return err
		}
		c, err := inventory.RecomputeTx(ctx, tx, bookID, book.Total)
		if err != nil {
			return err
		}
		res = RecomputeResult{Counts: c, Previous: book.Available, Changed: book.Available != c.Available}
		return nil
	})
	return res, err
}

func (s *Store) BookIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT book_id FROM books ORDER BY book_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---- Queries ----

const viewFrom = `
	FROM loans l
	JOIN books b ON b.book_id = l.book_id
	JOIN readers r ON r.reader_id = l.reader_id`

func scanView(row interface{ Scan(...any) error }) (*loanView, error) {
	var (
		v                  loanView
		name, surname, dni string
	)
	l, err := scanLoan(row, &v.BookTitle, &name, &surname, &dni)
	if err != nil {
		return nil, err
	}
	v.Loan = *l
	v.ReaderLabel = readers.Label(name, surname, dni)
	return &v, nil
}

const viewCols = loanCols + `, b.title, r.name, r.surname, r.dni`

func (s *Store) GetView(ctx context.Context, id int64) (*loanView, error) {
	return s.getViewBy(ctx, "l.loan_id = ?", id)
}

func (s *Store) GetViewByULID(ctx context.Context, ulid string) (*loanView, error) {
	return s.getViewBy(ctx, "l.loan_ulid = ?", strings.ToUpper(ulid))
}

func (s *Store) getViewBy(ctx context.Context, cond string, arg any) (*loanView, error) {
	v, err := scanView(s.db.QueryRowContext(ctx, `SELECT `+viewCols+viewFrom+` WHERE `+cond, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("loan not found")
		}
		return nil, err
	}
	return v, nil
}

// List: 貸出日の新しい順
func (s *Store) List(ctx context.Context, f LoanFilter, p httpx.Page) ([]loanView, int64, error) {
	var wb strings.Builder
	args := []any{}
	wb.WriteString(" WHERE 1=1")
	if f.State != nil {
		wb.WriteString(" AND l.state = ?")
		args = append(args, string(*f.State))
	}
	if f.ReaderID != nil {
		wb.WriteString(" AND l.reader_id = ?")
		args = append(args, *f.ReaderID)
	}
	if f.BookID != nil {
		wb.WriteString(" AND l.book_id = ?")
		args = append(args, *f.BookID)
	}
	where := wb.String()

	p = p.Normalize()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+viewCols+viewFrom+where+` ORDER BY l.loan_date DESC, l.loan_id DESC LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []loanView{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans l`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
