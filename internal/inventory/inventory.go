// Package inventory は書籍の在庫数 (available_copies) の再計算を担う。
// available は常に loans から導出し、呼び出し側が直接書き換えることはない。
package inventory

import (
	"context"
	"database/sql"
	"errors"

	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/db"
)

// 貸出中とみなす状態 (LENT, LATE)
const activeStates = `('LENT', 'LATE')`

type Counts struct {
	BookID    int64 `json:"book_id"`
	Total     int   `json:"total_copies"`
	Active    int   `json:"active_loans"`
	Available int   `json:"available_copies"`
}

// Available = max(0, total - active)
func Available(total, active int) int {
	if active >= total {
		return 0
	}
	return total - active
}

// LockBookTx: 書籍行をロックして現在値を返す。同一書籍への書き込みはここで直列化される。
func LockBookTx(ctx context.Context, tx db.DBTX, d db.Dialect, bookID int64) (Counts, error) {
	q := `SELECT book_id, total_copies, available_copies FROM books WHERE book_id = ?` + d.ForUpdate()
	var c Counts
	if err := tx.QueryRowContext(ctx, q, bookID).Scan(&c.BookID, &c.Total, &c.Available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Counts{}, apperr.NotFound("book not found")
		}
		return Counts{}, apperr.FromDB(err, "book")
	}
	return c, nil
}

// CountActiveTx: 書籍の貸出中件数。excludeLoanID > 0 ならその貸出を除く。
func CountActiveTx(ctx context.Context, tx db.DBTX, bookID, excludeLoanID int64) (int, error) {
	q := `SELECT COUNT(*) FROM loans WHERE book_id = ? AND state IN ` + activeStates + ` AND loan_id <> ?`
	var n int
	if err := tx.QueryRowContext(ctx, q, bookID, excludeLoanID).Scan(&n); err != nil {
		return 0, apperr.FromDB(err, "loan")
	}
	return n, nil
}

// RecomputeTx: LockBookTx 済みの書籍について available を再計算して保存する
func RecomputeTx(ctx context.Context, tx db.DBTX, bookID int64, total int) (Counts, error) {
	active, err := CountActiveTx(ctx, tx, bookID, 0)
	if err != nil {
		return Counts{}, err
	}
	c := Counts{BookID: bookID, Total: total, Active: active, Available: Available(total, active)}

	const q = `UPDATE books SET available_copies = ? WHERE book_id = ?`
	if _, err := tx.ExecContext(ctx, q, c.Available, bookID); err != nil {
		return Counts{}, apperr.FromDB(err, "book")
	}
	return c, nil
}
