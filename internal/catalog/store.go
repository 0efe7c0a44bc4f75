package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"michibiblio-backend/internal/inventory"
	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/httpx"
	"michibiblio-backend/internal/platform/textnorm"
)

type Store struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewStore(conn *sql.DB, d db.Dialect) *Store { return &Store{db: conn, dialect: d} }

// ===== categories =====

const categoryCols = `category_id, name, description, active, created_at`

func scanCategory(row interface{ Scan(...any) error }) (*Category, error) {
	var c Category
	if err := row.Scan(&c.CategoryID, &c.Name, &c.Description, &c.Active, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GET /categories?all=1
func (s *Store) ListCategories(ctx context.Context, includeInactive bool) ([]Category, error) {
	q := `SELECT ` + categoryCols + ` FROM categories`
	if !includeInactive {
		q += ` WHERE active = 1`
	}
	q += ` ORDER BY name, category_id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]Category, 0, 16)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	return res, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*Category, error) {
	q := `SELECT ` + categoryCols + ` FROM categories WHERE category_id = ?`
	c, err := scanCategory(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("category not found")
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) InsertCategory(ctx context.Context, c *Category) error {
	const q = `INSERT INTO categories (name, description, active) VALUES (?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, c.Name, c.Description, c.Active)
	if err != nil {
		return apperr.FromDB(err, "category name")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.CategoryID = id
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *Category) error {
	const q = `UPDATE categories SET name = ?, description = ?, active = ? WHERE category_id = ?`
	if _, err := s.db.ExecContext(ctx, q, c.Name, c.Description, c.Active, c.CategoryID); err != nil {
		return apperr.FromDB(err, "category name")
	}
	return nil
}

// DeleteCategory: 書籍が参照していれば削除不可
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE category_id = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return apperr.Referenced("category has books and cannot be deleted")
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE category_id = ?`, id)
		if err != nil {
			return apperr.FromDB(err, "category")
		}
		if aff, _ := res.RowsAffected(); aff == 0 {
			return apperr.NotFound("category not found")
		}
		return nil
	})
}

// ===== books =====

const bookCols = `
	b.book_id, b.title, b.author, b.isbn, b.published_on, b.category_id, c.name,
	b.total_copies, b.available_copies, b.active, b.created_at`

const bookFrom = ` FROM books b JOIN categories c ON c.category_id = b.category_id`

func scanBook(row interface{ Scan(...any) error }) (*Book, error) {
	var b Book
	if err := row.Scan(
		&b.BookID, &b.Title, &b.Author, &b.ISBN, &b.PublishedOn, &b.CategoryID, &b.CategoryName,
		&b.TotalCopies, &b.AvailableCopies, &b.Active, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

func bookSearchKey(b *Book) string {
	return textnorm.Key(b.Title, b.Author, b.ISBN.String)
}

func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	return getBookTx(ctx, s.db, id)
}

func getBookTx(ctx context.Context, tx db.DBTX, id int64) (*Book, error) {
	b, err := scanBook(tx.QueryRowContext(ctx, `SELECT `+bookCols+bookFrom+` WHERE b.book_id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("book not found")
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) ListBooks(ctx context.Context, q BookQuery, p httpx.Page) ([]Book, int64, error) {
	// --- WHERE句（フィルタ条件）の動的な追加 ---
	var wb strings.Builder
	args := []any{}
	wb.WriteString(" WHERE 1=1")
	if !q.IncludeInactive {
		wb.WriteString(" AND b.active = 1")
	}
	if q.CategoryID != nil {
		wb.WriteString(" AND b.category_id = ?")
		args = append(args, *q.CategoryID)
	}
	if key := textnorm.Fold(q.Q); key != "" {
		wb.WriteString(" AND b.search_key LIKE ? ESCAPE '!'")
		args = append(args, "%"+escapeLike(key)+"%")
	}
	where := wb.String()

	p = p.Normalize()
	query := `SELECT ` + bookCols + bookFrom + where + ` ORDER BY b.title, b.book_id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+bookFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return r.Replace(s)
}

// InsertBook: 新規登録時は貸出が無いので available = total
func (s *Store) InsertBook(ctx context.Context, b *Book) error {
	b.AvailableCopies = b.TotalCopies
	const q = `
	INSERT INTO books
	(title, author, isbn, published_on, category_id, total_copies, available_copies, active, search_key)
	VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		b.Title, b.Author, b.ISBN, b.PublishedOn, b.CategoryID,
		b.TotalCopies, b.AvailableCopies, b.Active, bookSearchKey(b),
	)
	if err != nil {
		return apperr.FromDB(err, "book (title+author or isbn)")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.BookID = id
	return nil
}

// UpdateBook: 書籍行をロックして apply を適用し、available を貸出から再計算して保存する
func (s *Store) UpdateBook(ctx context.Context, id int64, apply func(b *Book) error) (*Book, error) {
	var out *Book
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := inventory.LockBookTx(ctx, tx, s.dialect, id); err != nil {
			return err
		}
		b, err := getBookTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := apply(b); err != nil {
			return err
		}

		active, err := inventory.CountActiveTx(ctx, tx, id, 0)
		if err != nil {
			return err
		}
		b.AvailableCopies = inventory.Available(b.TotalCopies, active)

		const q = `
		UPDATE books
		SET title = ?, author = ?, isbn = ?, published_on = ?, category_id = ?,
			total_copies = ?, available_copies = ?, active = ?, search_key = ?
		WHERE book_id = ?`
		if _, err := tx.ExecContext(ctx, q,
			b.Title, b.Author, b.ISBN, b.PublishedOn, b.CategoryID,
			b.TotalCopies, b.AvailableCopies, b.Active, bookSearchKey(b), id,
		); err != nil {
			return apperr.FromDB(err, "book (title+author or isbn)")
		}

		out, err = getBookTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBook: 貸出履歴がある書籍は削除不可
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := inventory.LockBookTx(ctx, tx, s.dialect, id); err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE book_id = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return apperr.Referenced("book has loans and cannot be deleted")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE book_id = ?`, id); err != nil {
			return apperr.FromDB(err, "book")
		}
		return nil
	})
}

func (s *Store) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE category_id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
