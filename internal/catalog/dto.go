package catalog

import (
	"time"

	"cloud.google.com/go/civil"
)

// ===== Requests =====

type CreateCategoryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type CreateBookRequest struct {
	Title       string      `json:"title" binding:"required"`
	Author      string      `json:"author" binding:"required"`
	ISBN        *string     `json:"isbn,omitempty"`
	PublishedOn *civil.Date `json:"published_on,omitempty"`
	CategoryID  int64       `json:"category_id" binding:"required"`
	TotalCopies *int        `json:"total_copies,omitempty"` // 未指定なら 1
	Active      *bool       `json:"active,omitempty"`
}

type UpdateBookRequest struct {
	Title       *string     `json:"title,omitempty"`
	Author      *string     `json:"author,omitempty"`
	ISBN        *string     `json:"isbn,omitempty"` // "" で削除
	PublishedOn *civil.Date `json:"published_on,omitempty"`
	CategoryID  *int64      `json:"category_id,omitempty"`
	TotalCopies *int        `json:"total_copies,omitempty"`
	Active      *bool       `json:"active,omitempty"`
}

// ===== Responses =====

type CategoryResponse struct {
	CategoryID  int64     `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type BookResponse struct {
	BookID          int64       `json:"book_id"`
	Title           string      `json:"title"`
	Author          string      `json:"author"`
	ISBN            *string     `json:"isbn,omitempty"`
	PublishedOn     *civil.Date `json:"published_on,omitempty"`
	CategoryID      int64       `json:"category_id"`
	CategoryName    string      `json:"category_name"`
	TotalCopies     int         `json:"total_copies"`
	AvailableCopies int         `json:"available_copies"`
	Active          bool        `json:"active"`
	CreatedAt       time.Time   `json:"created_at"`
}

func toCategoryResponse(c *Category) CategoryResponse {
	return CategoryResponse{
		CategoryID:  c.CategoryID,
		Name:        c.Name,
		Description: c.Description,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
	}
}

func toBookResponse(b *Book) BookResponse {
	resp := BookResponse{
		BookID:          b.BookID,
		Title:           b.Title,
		Author:          b.Author,
		PublishedOn:     b.PublishedOn.Ptr(),
		CategoryID:      b.CategoryID,
		CategoryName:    b.CategoryName,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		Active:          b.Active,
		CreatedAt:       b.CreatedAt,
	}
	if b.ISBN.Valid {
		v := b.ISBN.String
		resp.ISBN = &v
	}
	return resp
}
