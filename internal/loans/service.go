package loans

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/oklog/ulid/v2"

	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/clock"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/httpx"
	"michibiblio-backend/internal/platform/logger"
	"michibiblio-backend/internal/readers"
)

// ===== インターフェース群 =====

type IDGen interface {
	New(t time.Time) (string, error)
}

type ulidGen struct{}

func (ulidGen) New(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t.UTC()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type Options struct {
	Clock           clock.Clock
	Location        *time.Location // 「今日」を決めるタイムゾーン
	DefaultLoanDays int
	IDGen           IDGen
}

// ===== Service本体 =====

type Service struct {
	store    *Store
	clock    clock.Clock
	loc      *time.Location
	loanDays int
	id       IDGen
}

func NewService(conn *sql.DB, d db.Dialect, opt Options) *Service {
	s := &Service{
		store:    NewStore(conn, d),
		clock:    opt.Clock,
		loc:      opt.Location,
		loanDays: opt.DefaultLoanDays,
		id:       opt.IDGen,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.loanDays <= 0 {
		s.loanDays = 14
	}
	if s.id == nil {
		s.id = ulidGen{}
	}
	return s
}

func (s *Service) Today() civil.Date { return clock.Today(s.clock, s.loc) }

// 貸出登録。reader_id と new_reader はどちらか一方のみ。
func (s *Service) CreateLoan(ctx context.Context, actor string, req CreateLoanRequest) (LoanResponse, error) {
	today := s.Today()

	l := &Loan{
		BookID:   req.BookID,
		State:    StateLent,
		LoanDate: today,
	}
	if req.LoanDate != nil {
		l.LoanDate = *req.LoanDate
	}
	if req.EstimatedReturnDate != nil {
		l.EstimatedReturnDate = *req.EstimatedReturnDate
	} else {
		l.EstimatedReturnDate = l.LoanDate.AddDays(s.loanDays)
	}
	if req.Comments != nil {
		l.Comments = strings.TrimSpace(*req.Comments)
	}

	// 入力の形（reader の指定方法、同時登録する利用者の項目）を先に確認する
	var newReader *readers.Reader
	var vs []apperr.Violation
	if req.BookID <= 0 {
		vs = append(vs, apperr.Violation{Field: "book_id", Rule: "required", Message: "book_id is required"})
	}
	switch {
	case req.ReaderID != nil && req.NewReader != nil:
		vs = append(vs, apperr.Violation{Field: "reader", Rule: "reader_conflict", Message: "specify either reader_id or new_reader, not both"})
	case req.ReaderID == nil && req.NewReader == nil:
		vs = append(vs, apperr.Violation{Field: "reader", Rule: "reader_required", Message: "reader_id or new_reader is required"})
	case req.ReaderID != nil:
		if *req.ReaderID <= 0 {
			vs = append(vs, apperr.Violation{Field: "reader_id", Rule: "invalid", Message: "reader_id must be > 0"})
		}
		l.ReaderID = *req.ReaderID
	default:
		newReader = readers.FromRequest(*req.NewReader)
		vs = append(vs, readers.Validate(newReader, "new_reader.")...)
		vs = append(vs, readers.ValidateContact(newReader, "new_reader.")...)
	}
	if len(l.Comments) > 1000 {
		vs = append(vs, apperr.Violation{Field: "comments", Rule: "too_long", Message: "comments must be at most 1000 characters"})
	}
	if err := apperr.Validation(vs); err != nil {
		return LoanResponse{}, err
	}

	if err := s.stamp(l, actor); err != nil {
		return LoanResponse{}, err
	}
	counts, err := s.store.ExecCreate(ctx, l, newReader, false)
	if err != nil {
		return LoanResponse{}, err
	}

	ev := logger.Audit(ctx, "LOAN_CREATE").
		Int64("loan_id", l.LoanID).Int64("book_id", l.BookID).Int64("reader_id", l.ReaderID).
		Int("available_copies", counts.Available).Str("by", actor)
	if newReader != nil {
		ev = ev.Bool("new_reader", true)
	}
	ev.Msg("loan created")

	return s.GetLoan(ctx, strconv.FormatInt(l.LoanID, 10))
}

// ImportLoan: 任意の状態で取り込む。新規作成と同じく Validate と在庫再計算を通す。
// LATE も在庫を占有するため容量チェックの対象になる。
func (s *Service) ImportLoan(ctx context.Context, actor string, req ImportLoanRequest) (LoanResponse, error) {
	l := &Loan{
		BookID:              req.BookID,
		ReaderID:            req.ReaderID,
		LoanDate:            req.LoanDate,
		EstimatedReturnDate: req.EstimatedReturnDate,
		State:               req.State,
		Comments:            req.Comments,
	}
	if req.ActualReturnDate != nil {
		l.ActualReturnDate = db.NewNullDate(*req.ActualReturnDate)
	}
	if err := s.stamp(l, actor); err != nil {
		return LoanResponse{}, err
	}
	if _, err := s.store.ExecCreate(ctx, l, nil, true); err != nil {
		return LoanResponse{}, err
	}
	logger.Audit(ctx, "LOAN_IMPORT").Int64("loan_id", l.LoanID).Str("state", string(l.State)).Str("by", actor).Msg("loan imported")
	return s.GetLoan(ctx, strconv.FormatInt(l.LoanID, 10))
}

func (s *Service) stamp(l *Loan, actor string) error {
	now := s.clock.Now().UTC()
	id, err := s.id.New(now)
	if err != nil {
		return err
	}
	l.LoanULID = id
	l.CreatedAt = now
	if actor != "" {
		l.CreatedBy = sql.NullString{String: actor, Valid: true}
	}
	return nil
}

// 返却登録
func (s *Service) ReturnLoan(ctx context.Context, actor, key string) (LoanResponse, error) {
	return s.transition(ctx, actor, key, "LOAN_RETURN", func(l *Loan, today civil.Date) error {
		return l.Return(today)
	})
}

// 盗難登録
func (s *Service) MarkStolen(ctx context.Context, actor, key string) (LoanResponse, error) {
	return s.transition(ctx, actor, key, "LOAN_STOLEN", func(l *Loan, today civil.Date) error {
		return l.MarkStolen(today)
	})
}

func (s *Service) transition(ctx context.Context, actor, key, action string, apply func(*Loan, civil.Date) error) (LoanResponse, error) {
	id, err := s.resolveID(ctx, key)
	if err != nil {
		return LoanResponse{}, err
	}
	today := s.Today()
	l, counts, err := s.store.ExecTransition(ctx, id, s.clock.Now().UTC(), func(l *Loan) error {
		return apply(l, today)
	})
	if err != nil {
		return LoanResponse{}, err
	}
	logger.Audit(ctx, action).
		Int64("loan_id", l.LoanID).Str("state", string(l.State)).
		Int("available_copies", counts.Available).Str("by", actor).
		Msg("loan updated")
	return s.GetLoan(ctx, strconv.FormatInt(l.LoanID, 10))
}

// RecomputeAvailability: 書籍1冊分の在庫を貸出から再計算する
func (s *Service) RecomputeAvailability(ctx context.Context, bookID int64) (RecomputeResult, error) {
	if bookID <= 0 {
		return RecomputeResult{}, apperr.Invalid("book_id must be > 0")
	}
	res, err := s.store.Recompute(ctx, bookID)
	if err != nil {
		return RecomputeResult{}, err
	}
	if res.Changed {
		logger.Audit(ctx, "INVENTORY_REPAIR").Int64("book_id", bookID).
			Int("previous", res.Previous).Int("available_copies", res.Available).Msg("availability repaired")
	}
	return res, nil
}

// RecomputeAll: 全書籍を1冊ずつ別Txで再計算する
func (s *Service) RecomputeAll(ctx context.Context) ([]RecomputeResult, error) {
	ids, err := s.store.BookIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RecomputeResult, 0, len(ids))
	for _, id := range ids {
		res, err := s.RecomputeAvailability(ctx, id)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// 貸出単一取得（ID or ULID）
func (s *Service) GetLoan(ctx context.Context, key string) (LoanResponse, error) {
	if key == "" {
		return LoanResponse{}, apperr.Invalid("id or ulid is required")
	}
	var (
		v   *loanView
		err error
	)
	// 数値として解釈できればID検索
	if id, perr := strconv.ParseInt(key, 10, 64); perr == nil && id > 0 {
		v, err = s.store.GetView(ctx, id)
	} else {
		v, err = s.store.GetViewByULID(ctx, key)
	}
	if err != nil {
		return LoanResponse{}, err
	}
	return buildLoanResponse(v, s.Today()), nil
}

func (s *Service) resolveID(ctx context.Context, key string) (int64, error) {
	if id, err := strconv.ParseInt(key, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	if _, err := ulid.ParseStrict(strings.ToUpper(key)); err != nil {
		return 0, apperr.Invalid("loan key must be an id or ulid")
	}
	v, err := s.store.GetViewByULID(ctx, key)
	if err != nil {
		return 0, err
	}
	return v.LoanID, nil
}

// 貸出一覧
func (s *Service) ListLoans(ctx context.Context, f LoanFilter, p httpx.Page) (httpx.List[LoanResponse], error) {
	if f.State != nil && !f.State.Valid() {
		return httpx.List[LoanResponse]{}, apperr.Invalid("unknown state: " + string(*f.State))
	}
	p = p.Normalize()
	list, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return httpx.List[LoanResponse]{}, err
	}
	today := s.Today()
	items := make([]LoanResponse, 0, len(list))
	for i := range list {
		items = append(items, buildLoanResponse(&list[i], today))
	}
	return httpx.NewList(items, total, p), nil
}
