package reports

import (
	"context"
	"database/sql"

	"cloud.google.com/go/civil"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"   // dialect import
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect import
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"michibiblio-backend/internal/loans"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/httpx"
)

// Store は読み取り専用。書き込みTxの外で読む。
type Store struct {
	db      *sqlx.DB
	builder goqu.DialectWrapper
}

func NewStore(conn *sql.DB, d db.Dialect) *Store {
	return &Store{
		db:      sqlx.NewDb(conn, d.String()),
		builder: goqu.Dialect(d.String()),
	}
}

// カラム
var rowCols = []any{
	goqu.I("l.loan_id").As("loan_id"),
	goqu.I("l.loan_ulid").As("loan_ulid"),
	goqu.I("l.book_id").As("book_id"),
	goqu.I("b.title").As("book_title"),
	goqu.I("b.author").As("book_author"),
	goqu.I("l.reader_id").As("reader_id"),
	goqu.I("r.name").As("reader_name"),
	goqu.I("r.surname").As("reader_surname"),
	goqu.I("r.dni").As("reader_dni"),
	goqu.I("c.name").As("category_name"),
	goqu.I("l.state").As("state"),
	goqu.I("l.loan_date").As("loan_date"),
	goqu.I("l.estimated_return_date").As("estimated_return_date"),
	goqu.I("l.actual_return_date").As("actual_return_date"),
}

func (s *Store) from() *goqu.SelectDataset {
	return s.builder.From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("l.book_id")))).
		Join(goqu.T("readers").As("r"), goqu.On(goqu.I("r.reader_id").Eq(goqu.I("l.reader_id")))).
		Join(goqu.T("categories").As("c"), goqu.On(goqu.I("c.category_id").Eq(goqu.I("b.category_id")))).
		Prepared(true)
}

func (f Filter) where() []exp.Expression {
	ex := make([]exp.Expression, 0, 4)
	if f.State != nil {
		ex = append(ex, goqu.I("l.state").Eq(string(*f.State)))
	}
	if f.CategoryID != nil {
		ex = append(ex, goqu.I("b.category_id").Eq(*f.CategoryID))
	}
	if f.From != nil {
		ex = append(ex, goqu.I("l.loan_date").Gte(f.From.String()))
	}
	if f.To != nil {
		ex = append(ex, goqu.I("l.loan_date").Lte(f.To.String()))
	}
	return ex
}

func newest(ds *goqu.SelectDataset) *goqu.SelectDataset {
	return ds.Order(goqu.I("l.loan_date").Desc(), goqu.I("l.loan_id").Desc())
}

// SummaryByState: 状態ごとの件数
func (s *Store) SummaryByState(ctx context.Context, f Filter) ([]stateTotal, error) {
	q, args, err := s.from().Where(f.where()...).
		Select(goqu.I("l.state").As("state"), goqu.COUNT(goqu.Star()).As("total")).
		GroupBy(goqu.I("l.state")).
		ToSQL()
	if err != nil {
		return nil, err
	}
	var out []stateTotal
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, f Filter, extra ...exp.Expression) (int64, error) {
	q, args, err := s.from().Where(append(f.where(), extra...)...).
		Select(goqu.COUNT(goqu.Star())).
		ToSQL()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.GetContext(ctx, &n, q, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// Rows: 貸出日の新しい順
func (s *Store) Rows(ctx context.Context, f Filter, p httpx.Page) ([]loanRow, error) {
	p = p.Normalize()
	ds := newest(s.from().Where(f.where()...).Select(rowCols...)).
		Limit(uint(p.Limit)).Offset(uint(p.Offset))
	return s.selectRows(ctx, ds)
}

// ActiveSince: 指定日以降に貸し出された LENT / LATE
func (s *Store) ActiveSince(ctx context.Context, since civil.Date) ([]loanRow, error) {
	ds := newest(s.from().Where(
		goqu.I("l.state").In(string(loans.StateLent), string(loans.StateLate)),
		goqu.I("l.loan_date").Gte(since.String()),
	).Select(rowCols...))
	return s.selectRows(ctx, ds)
}

func (s *Store) LatestLate(ctx context.Context, limit uint) ([]loanRow, error) {
	ds := newest(s.from().Where(goqu.I("l.state").Eq(string(loans.StateLate))).Select(rowCols...)).Limit(limit)
	return s.selectRows(ctx, ds)
}

func (s *Store) selectRows(ctx context.Context, ds *goqu.SelectDataset) ([]loanRow, error) {
	q, args, err := ds.ToSQL()
	if err != nil {
		return nil, err
	}
	out := []loanRow{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}
