package reports

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"

	"michibiblio-backend/internal/loans"
	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/clock"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/httpx"
)

const (
	recentDays = 7
	lateLimit  = 20
)

type Service struct {
	store *Store
	clock clock.Clock
	loc   *time.Location
}

func NewService(conn *sql.DB, d db.Dialect, c clock.Clock, loc *time.Location) *Service {
	if c == nil {
		c = clock.Real{}
	}
	return &Service{store: NewStore(conn, d), clock: c, loc: loc}
}

func (f Filter) validate() error {
	var vs []apperr.Violation
	if f.State != nil && !f.State.Valid() {
		vs = append(vs, apperr.Violation{Field: "state", Rule: "invalid", Message: "unknown loan state"})
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		vs = append(vs, apperr.Violation{Field: "to", Rule: "before_from", Message: "to must not be earlier than from"})
	}
	return apperr.Validation(vs)
}

// Summary: 全状態の件数（0件も含む）
func (s *Service) Summary(ctx context.Context, f Filter) ([]StateCount, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	rows, err := s.store.SummaryByState(ctx, f)
	if err != nil {
		return nil, err
	}
	return toStateCounts(rows), nil
}

// Report: 集計 + 明細
func (s *Service) Report(ctx context.Context, f Filter, p httpx.Page) (ReportResponse, error) {
	summary, err := s.Summary(ctx, f)
	if err != nil {
		return ReportResponse{}, err
	}
	total, err := s.store.Count(ctx, f)
	if err != nil {
		return ReportResponse{}, err
	}
	late, err := s.store.Count(ctx, f, goqu.I("l.state").Eq(string(loans.StateLate)))
	if err != nil {
		return ReportResponse{}, err
	}

	p = p.Normalize()
	rows, err := s.store.Rows(ctx, f, p)
	if err != nil {
		return ReportResponse{}, err
	}
	today := clock.Today(s.clock, s.loc)
	items := make([]LoanRow, 0, len(rows))
	for i := range rows {
		items = append(items, toLoanRow(&rows[i], today))
	}

	return ReportResponse{
		Filters:    FilterEcho(f),
		Summary:    summary,
		TotalLoans: total,
		TotalLate:  late,
		Items:      items,
		NextOffset: httpx.NextOffset(total, p),
	}, nil
}

// Dashboard: 直近7日の貸出中。管理者には全体集計と最新の LATE 20件を付ける。
func (s *Service) Dashboard(ctx context.Context, supervisor bool) (DashboardResponse, error) {
	today := clock.Today(s.clock, s.loc)
	since := today.AddDays(-recentDays)

	active, err := s.store.ActiveSince(ctx, since)
	if err != nil {
		return DashboardResponse{}, err
	}
	res := DashboardResponse{
		Supervisor:   supervisor,
		Today:        today,
		Since:        since,
		RecentActive: make([]LoanRow, 0, len(active)),
	}
	for i := range active {
		res.RecentActive = append(res.RecentActive, toLoanRow(&active[i], today))
	}
	if !supervisor {
		return res, nil
	}

	if res.Summary, err = s.Summary(ctx, Filter{}); err != nil {
		return DashboardResponse{}, err
	}
	late, err := s.store.LatestLate(ctx, lateLimit)
	if err != nil {
		return DashboardResponse{}, err
	}
	res.RecentLate = make([]LoanRow, 0, len(late))
	for i := range late {
		res.RecentLate = append(res.RecentLate, toLoanRow(&late[i], today))
	}
	return res, nil
}
