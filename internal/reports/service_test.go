package reports

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"michibiblio-backend/internal/catalog"
	"michibiblio-backend/internal/loans"
	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/clock"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/dbtest"
	"michibiblio-backend/internal/platform/httpx"
	"michibiblio-backend/internal/readers"
)

func day(m time.Month, d int) civil.Date { return civil.Date{Year: 2025, Month: m, Day: d} }

type seeded struct {
	svc        *Service
	novelas    int64
	historia   int64
	lateReader int64
}

// 3/20 を今日として、2カテゴリ・4件の貸出を用意する
func setup(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.Open(t)
	today := day(time.March, 20)

	cs := catalog.NewService(conn, db.SQLite)
	rs := readers.NewService(conn)
	ls := loans.NewService(conn, db.SQLite, loans.Options{Clock: clock.On(today)})

	nov, err := cs.CreateCategory(ctx, "t", catalog.CreateCategoryRequest{Name: "Novela"})
	require.NoError(t, err)
	his, err := cs.CreateCategory(ctx, "t", catalog.CreateCategoryRequest{Name: "Historia"})
	require.NoError(t, err)

	three := 3
	b1, err := cs.CreateBook(ctx, "t", catalog.CreateBookRequest{Title: "Rayuela", Author: "Julio Cortázar", CategoryID: nov.CategoryID, TotalCopies: &three})
	require.NoError(t, err)
	b2, err := cs.CreateBook(ctx, "t", catalog.CreateBookRequest{Title: "Facundo", Author: "Domingo F. Sarmiento", CategoryID: his.CategoryID, TotalCopies: &three})
	require.NoError(t, err)

	phone := "1144445555"
	r1, err := rs.Create(ctx, "t", readers.CreateReaderRequest{Name: "Lucía", Surname: "Fernández", DNI: "20000001", Phone: &phone})
	require.NoError(t, err)
	r2, err := rs.Create(ctx, "t", readers.CreateReaderRequest{Name: "Martín", Surname: "López", DNI: "20000002", Phone: &phone})
	require.NoError(t, err)

	ret := day(time.February, 10)
	imports := []loans.ImportLoanRequest{
		{BookID: b1.BookID, ReaderID: r1.ReaderID, LoanDate: day(time.March, 18), EstimatedReturnDate: day(time.April, 1), State: loans.StateLent},
		{BookID: b1.BookID, ReaderID: r2.ReaderID, LoanDate: day(time.February, 1), EstimatedReturnDate: day(time.February, 15), ActualReturnDate: &ret, State: loans.StateReturned},
		{BookID: b2.BookID, ReaderID: r2.ReaderID, LoanDate: day(time.February, 20), EstimatedReturnDate: day(time.March, 5), State: loans.StateLate},
		{BookID: b2.BookID, ReaderID: r1.ReaderID, LoanDate: day(time.March, 15), EstimatedReturnDate: day(time.March, 17), State: loans.StateLent},
	}
	for _, in := range imports {
		_, err := ls.ImportLoan(ctx, "seed", in)
		require.NoError(t, err)
	}

	return seeded{
		svc:        NewService(conn, db.SQLite, clock.On(today), time.UTC),
		novelas:    nov.CategoryID,
		historia:   his.CategoryID,
		lateReader: r2.ReaderID,
	}
}

func totals(sc []StateCount) map[loans.State]int64 {
	m := map[loans.State]int64{}
	for _, s := range sc {
		m[s.State] = s.Total
	}
	return m
}

func TestSummary_IncludesZeroStates(t *testing.T) {
	s := setup(t)
	sum, err := s.svc.Summary(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, sum, 4)
	assert.Equal(t, loans.StateLent, sum[0].State)
	assert.Equal(t, "Lent", sum[0].StateLabel)
	assert.Equal(t, map[loans.State]int64{
		loans.StateLent: 2, loans.StateReturned: 1, loans.StateLate: 1, loans.StateStolen: 0,
	}, totals(sum))
}

func TestReport_Filters(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	res, err := s.svc.Report(ctx, Filter{}, httpx.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.TotalLoans)
	assert.EqualValues(t, 1, res.TotalLate)
	require.Len(t, res.Items, 4)
	// 貸出日の新しい順
	assert.Equal(t, day(time.March, 18), res.Items[0].LoanDate)
	assert.Equal(t, "Rayuela (Julio Cortázar)", res.Items[0].BookLabel)
	assert.Equal(t, "Fernández, Lucía (20000001)", res.Items[0].ReaderLabel)
	assert.Equal(t, "Novela", res.Items[0].Category)
	assert.Equal(t, day(time.February, 1), res.Items[3].LoanDate)
	require.NotNil(t, res.Items[3].ActualReturnDate)

	res, err = s.svc.Report(ctx, Filter{CategoryID: &s.historia}, httpx.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalLoans)
	assert.EqualValues(t, 1, res.TotalLate)
	for _, it := range res.Items {
		assert.Equal(t, "Historia", it.Category)
		assert.True(t, it.IsOverdue, "loan %d", it.LoanID)
	}

	from, to := day(time.February, 15), day(time.March, 16)
	res, err = s.svc.Report(ctx, Filter{From: &from, To: &to}, httpx.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalLoans)
	assert.Equal(t, int64(1), totals(res.Summary)[loans.StateLate])
	assert.Equal(t, int64(0), totals(res.Summary)[loans.StateReturned])

	st := loans.StateReturned
	res, err = s.svc.Report(ctx, Filter{State: &st}, httpx.Page{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalLoans)
	assert.EqualValues(t, 0, res.TotalLate)
	assert.Equal(t, 0, res.NextOffset)
}

func TestReport_Paging(t *testing.T) {
	s := setup(t)
	res, err := s.svc.Report(context.Background(), Filter{}, httpx.Page{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
	assert.Equal(t, 3, res.NextOffset)
}

func TestReport_InvalidFilter(t *testing.T) {
	s := setup(t)
	from, to := day(time.March, 10), day(time.March, 1)
	_, err := s.svc.Report(context.Background(), Filter{From: &from, To: &to}, httpx.Page{})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.True(t, e.HasRule("to", "before_from"))

	bad := loans.State("LOST")
	_, err = s.svc.Summary(context.Background(), Filter{State: &bad})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestDashboard(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	op, err := s.svc.Dashboard(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, day(time.March, 13), op.Since)
	// 3/15 と 3/18 の LENT のみ（LATE は 2/20 で範囲外）
	require.Len(t, op.RecentActive, 2)
	assert.Equal(t, day(time.March, 18), op.RecentActive[0].LoanDate)
	assert.False(t, op.RecentActive[0].IsOverdue)
	assert.True(t, op.RecentActive[1].IsOverdue)
	assert.Nil(t, op.Summary)
	assert.Nil(t, op.RecentLate)

	sup, err := s.svc.Dashboard(ctx, true)
	require.NoError(t, err)
	assert.Len(t, sup.Summary, 4)
	require.Len(t, sup.RecentLate, 1)
	assert.Equal(t, s.lateReader, sup.RecentLate[0].ReaderID)
}
