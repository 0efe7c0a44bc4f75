package readers

import (
	"context"
	"database/sql"
	"strings"

	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/db"
	"michibiblio-backend/internal/platform/httpx"
	"michibiblio-backend/internal/platform/logger"
	"michibiblio-backend/internal/platform/textnorm"
)

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(conn *sql.DB) *Service {
	return &Service{db: conn, store: NewStore(conn)}
}

func (s *Service) List(ctx context.Context, q ReaderQuery, p httpx.Page) (httpx.List[ReaderResponse], error) {
	p = p.Normalize()
	list, total, err := s.store.List(ctx, q, p)
	if err != nil {
		return httpx.List[ReaderResponse]{}, err
	}
	items := make([]ReaderResponse, 0, len(list))
	for i := range list {
		items = append(items, toReaderResponse(&list[i]))
	}
	return httpx.NewList(items, total, p), nil
}

func (s *Service) Get(ctx context.Context, id int64) (ReaderResponse, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return ReaderResponse{}, err
	}
	return toReaderResponse(r), nil
}

func (s *Service) Create(ctx context.Context, actor string, in CreateReaderRequest) (ReaderResponse, error) {
	r := FromRequest(in)
	if err := apperr.Validation(Validate(r, "")); err != nil {
		return ReaderResponse{}, err
	}
	if err := s.store.Insert(ctx, r); err != nil {
		return ReaderResponse{}, err
	}
	logger.Audit(ctx, "READER_CREATE").Int64("reader_id", r.ReaderID).Str("by", actor).Msg("reader created")
	return s.Get(ctx, r.ReaderID)
}

func (s *Service) Update(ctx context.Context, actor string, id int64, in UpdateReaderRequest) (ReaderResponse, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return ReaderResponse{}, err
	}
	if in.Name != nil {
		r.Name = textnorm.Clean(*in.Name)
	}
	if in.Surname != nil {
		r.Surname = textnorm.Clean(*in.Surname)
	}
	if in.DNI != nil {
		r.DNI = normalizeDNI(*in.DNI)
	}
	if in.Email != nil {
		r.Email = optional(strings.ToLower(strings.TrimSpace(*in.Email)))
	}
	if in.Phone != nil {
		r.Phone = optional(strings.TrimSpace(*in.Phone))
	}
	if in.Active != nil {
		r.Active = *in.Active
	}
	if err := apperr.Validation(Validate(r, "")); err != nil {
		return ReaderResponse{}, err
	}
	if err := s.store.Update(ctx, r); err != nil {
		return ReaderResponse{}, err
	}
	logger.Audit(ctx, "READER_UPDATE").Int64("reader_id", id).Str("by", actor).Msg("reader updated")
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, actor string, id int64) error {
	// 貸出件数の確認と DELETE を同じTxで
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		return NewStore(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	logger.Audit(ctx, "READER_DELETE").Int64("reader_id", id).Str("by", actor).Msg("reader deleted")
	return nil
}
