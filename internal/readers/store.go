package readers

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/httpx"
	"michibiblio-backend/internal/platform/textnorm"
)

// Store は *sql.DB でも *sql.Tx でも動く（貸出Tx内での同時登録に使う）
type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

const readerCols = `reader_id, name, surname, dni, email, phone, active, created_at`

func scanReader(row interface{ Scan(...any) error }) (*Reader, error) {
	var r Reader
	if err := row.Scan(&r.ReaderID, &r.Name, &r.Surname, &r.DNI, &r.Email, &r.Phone, &r.Active, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*Reader, error) {
	r, err := scanReader(s.db.QueryRowContext(ctx, `SELECT `+readerCols+` FROM readers WHERE reader_id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("reader not found")
		}
		return nil, err
	}
	return r, nil
}

// List: q は氏名・DNI の部分一致（DNIは前方一致）
func (s *Store) List(ctx context.Context, q ReaderQuery, p httpx.Page) ([]Reader, int64, error) {
	var wb strings.Builder
	args := []any{}
	wb.WriteString(" WHERE 1=1")
	if !q.IncludeInactive {
		wb.WriteString(" AND active = 1")
	}
	if v := textnorm.Clean(q.Q); v != "" {
		wb.WriteString(" AND (LOWER(name) LIKE ? OR LOWER(surname) LIKE ? OR dni LIKE ?)")
		like := "%" + strings.ToLower(v) + "%"
		args = append(args, like, like, v+"%")
	}
	where := wb.String()

	p = p.Normalize()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readerCols+` FROM readers`+where+` ORDER BY surname, name, reader_id LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []Reader{}
	for rows.Next() {
		r, err := scanReader(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Store) Insert(ctx context.Context, r *Reader) error {
	const q = `
	INSERT INTO readers (name, surname, dni, email, phone, active)
	VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, r.Name, r.Surname, r.DNI, r.Email, r.Phone, r.Active)
	if err != nil {
		return apperr.FromDB(err, "reader dni")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ReaderID = id
	return nil
}

func (s *Store) Update(ctx context.Context, r *Reader) error {
	const q = `
	UPDATE readers
	SET name = ?, surname = ?, dni = ?, email = ?, phone = ?, active = ?
	WHERE reader_id = ?`
	if _, err := s.db.ExecContext(ctx, q, r.Name, r.Surname, r.DNI, r.Email, r.Phone, r.Active, r.ReaderID); err != nil {
		return apperr.FromDB(err, "reader dni")
	}
	return nil
}

// Delete: 貸出履歴がある利用者は削除不可。Tx 上の Store で呼ぶこと。
func (s *Store) Delete(ctx context.Context, id int64) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE reader_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return apperr.Referenced("reader has loans and cannot be deleted")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM readers WHERE reader_id = ?`, id)
	if err != nil {
		return apperr.FromDB(err, "reader")
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apperr.NotFound("reader not found")
	}
	return nil
}

// CountLate: 利用者の LATE 貸出件数
func (s *Store) CountLate(ctx context.Context, id int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE reader_id = ? AND state = 'LATE'`, id).Scan(&n)
	return n, err
}
