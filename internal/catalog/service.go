package catalog

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
	store *Store
}

func NewService(conn *sql.DB, d db.Dialect) *Service {
	return &Service{store: NewStore(conn, d)}
}

// ===== categories =====

func (s *Service) ListCategories(ctx context.Context, includeInactive bool) ([]CategoryResponse, error) {
	list, err := s.store.ListCategories(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryResponse, 0, len(list))
	for i := range list {
		out = append(out, toCategoryResponse(&list[i]))
	}
	return out, nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (CategoryResponse, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return CategoryResponse{}, err
	}
	return toCategoryResponse(c), nil
}

func (s *Service) CreateCategory(ctx context.Context, actor string, in CreateCategoryRequest) (CategoryResponse, error) {
	c := &Category{Name: textnorm.Clean(in.Name), Active: true}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.Active != nil {
		c.Active = *in.Active
	}
	if err := validateCategory(c); err != nil {
		return CategoryResponse{}, err
	}
	if err := s.store.InsertCategory(ctx, c); err != nil {
		return CategoryResponse{}, err
	}
	logger.Audit(ctx, "CATEGORY_CREATE").Int64("category_id", c.CategoryID).Str("by", actor).Msg("category created")
	return s.GetCategory(ctx, c.CategoryID)
}

func (s *Service) UpdateCategory(ctx context.Context, actor string, id int64, in UpdateCategoryRequest) (CategoryResponse, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return CategoryResponse{}, err
	}
	if in.Name != nil {
		c.Name = textnorm.Clean(*in.Name)
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.Active != nil {
		c.Active = *in.Active
	}
	if err := validateCategory(c); err != nil {
		return CategoryResponse{}, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return CategoryResponse{}, err
	}
	logger.Audit(ctx, "CATEGORY_UPDATE").Int64("category_id", id).Str("by", actor).Msg("category updated")
	return s.GetCategory(ctx, id)
}

func (s *Service) DeleteCategory(ctx context.Context, actor string, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	logger.Audit(ctx, "CATEGORY_DELETE").Int64("category_id", id).Str("by", actor).Msg("category deleted")
	return nil
}

func validateCategory(c *Category) error {
	var vs []apperr.Violation
	if c.Name == "" {
		vs = append(vs, apperr.Violation{Field: "name", Rule: "required", Message: "name is required"})
	} else if len(c.Name) > 100 {
		vs = append(vs, apperr.Violation{Field: "name", Rule: "too_long", Message: "name must be at most 100 characters"})
	}
	return apperr.Validation(vs)
}

// ===== books =====

func (s *Service) ListBooks(ctx context.Context, q BookQuery, p httpx.Page) (httpx.List[BookResponse], error) {
	p = p.Normalize()
	list, total, err := s.store.ListBooks(ctx, q, p)
	if err != nil {
		return httpx.List[BookResponse]{}, err
	}
	items := make([]BookResponse, 0, len(list))
	for i := range list {
		items = append(items, toBookResponse(&list[i]))
	}
	return httpx.NewList(items, total, p), nil
}

func (s *Service) GetBook(ctx context.Context, id int64) (BookResponse, error) {
	b, err := s.store.GetBook(ctx, id)
	if err != nil {
		return BookResponse{}, err
	}
	return toBookResponse(b), nil
}

func (s *Service) CreateBook(ctx context.Context, actor string, in CreateBookRequest) (BookResponse, error) {
	b := &Book{
		Title:       textnorm.Clean(in.Title),
		Author:      textnorm.Clean(in.Author),
		CategoryID:  in.CategoryID,
		TotalCopies: 1,
		Active:      true,
	}
	if in.ISBN != nil {
		b.ISBN = normalizeISBN(*in.ISBN)
	}
	if in.PublishedOn != nil {
		b.PublishedOn = db.NewNullDate(*in.PublishedOn)
	}
	if in.TotalCopies != nil {
		b.TotalCopies = *in.TotalCopies
	}
	if in.Active != nil {
		b.Active = *in.Active
	}
	if err := validateBook(b); err != nil {
		return BookResponse{}, err
	}
	if err := s.requireCategory(ctx, b.CategoryID); err != nil {
		return BookResponse{}, err
	}

	if err := s.store.InsertBook(ctx, b); err != nil {
		return BookResponse{}, err
	}
	logger.Audit(ctx, "BOOK_CREATE").Int64("book_id", b.BookID).Str("by", actor).Msg("book created")
	return s.GetBook(ctx, b.BookID)
}

// UpdateBook: total_copies を変えた場合は同じTxで available も再計算される
func (s *Service) UpdateBook(ctx context.Context, actor string, id int64, in UpdateBookRequest) (BookResponse, error) {
	if in.CategoryID != nil {
		if err := s.requireCategory(ctx, *in.CategoryID); err != nil {
			return BookResponse{}, err
		}
	}
	b, err := s.store.UpdateBook(ctx, id, func(b *Book) error {
		if in.Title != nil {
			b.Title = textnorm.Clean(*in.Title)
		}
		if in.Author != nil {
			b.Author = textnorm.Clean(*in.Author)
		}
		if in.ISBN != nil {
			b.ISBN = normalizeISBN(*in.ISBN)
		}
		if in.PublishedOn != nil {
			b.PublishedOn = db.NewNullDate(*in.PublishedOn)
		}
		if in.CategoryID != nil {
			b.CategoryID = *in.CategoryID
		}
		if in.TotalCopies != nil {
			b.TotalCopies = *in.TotalCopies
		}
		if in.Active != nil {
			b.Active = *in.Active
		}
		return validateBook(b)
	})
	if err != nil {
		return BookResponse{}, err
	}
	logger.Audit(ctx, "BOOK_UPDATE").Int64("book_id", id).Str("by", actor).
		Int("total_copies", b.TotalCopies).Int("available_copies", b.AvailableCopies).Msg("book updated")
	return toBookResponse(b), nil
}

func (s *Service) DeleteBook(ctx context.Context, actor string, id int64) error {
	if err := s.store.DeleteBook(ctx, id); err != nil {
		return err
	}
	logger.Audit(ctx, "BOOK_DELETE").Int64("book_id", id).Str("by", actor).Msg("book deleted")
	return nil
}

func (s *Service) requireCategory(ctx context.Context, id int64) error {
	ok, err := s.store.CategoryExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation([]apperr.Violation{{Field: "category_id", Rule: "not_found", Message: "category does not exist"}})
	}
	return nil
}

// ISBN はハイフン・空白を除いて保存する。空文字は NULL。
func normalizeISBN(s string) sql.NullString {
	s = strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.ToUpper(s), Valid: true}
}

func validateBook(b *Book) error {
	var vs []apperr.Violation
	if b.Title == "" {
		vs = append(vs, apperr.Violation{Field: "title", Rule: "required", Message: "title is required"})
	}
	if b.Author == "" {
		vs = append(vs, apperr.Violation{Field: "author", Rule: "required", Message: "author is required"})
	}
	if b.CategoryID <= 0 {
		vs = append(vs, apperr.Violation{Field: "category_id", Rule: "required", Message: "category_id is required"})
	}
	if b.TotalCopies < 1 {
		vs = append(vs, apperr.Violation{Field: "total_copies", Rule: "min", Message: "total_copies must be >= 1"})
	}
	if b.ISBN.Valid && (len(b.ISBN.String) != 10 && len(b.ISBN.String) != 13) {
		vs = append(vs, apperr.Violation{Field: "isbn", Rule: "invalid", Message: "isbn must have 10 or 13 characters"})
	}
	return apperr.Validation(vs)
}
