package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/auth"
	"michibiblio-backend/internal/platform/httpx"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service, p auth.Policy) {
	h := &Handler{svc: svc}
	manage := auth.Require(p, auth.ActionManageCatalog)
	view := auth.Require(p, auth.ActionViewCatalog)

	// カテゴリ（管理者のみ）
	r.GET("/categories", manage, h.ListCategories)
	r.POST("/categories", manage, h.CreateCategory)
	r.GET("/categories/:id", manage, h.GetCategory)
	r.PUT("/categories/:id", manage, h.UpdateCategory)
	r.DELETE("/categories/:id", manage, h.DeleteCategory)

	// 書籍
	r.GET("/books", view, h.ListBooks)
	r.GET("/books/:id", view, h.GetBook)
	r.POST("/books", manage, h.CreateBook)
	r.PUT("/books/:id", manage, h.UpdateBook)
	r.DELETE("/books/:id", manage, h.DeleteBook)
}

func actor(c *gin.Context) string {
	id, _ := auth.IdentityFrom(c)
	return id.Subject
}

// ---------- categories ----------

func (h *Handler) ListCategories(c *gin.Context) {
	res, err := h.svc.ListCategories(c.Request.Context(), httpx.ParseBoolish(c.Query("all")))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetCategory(c *gin.Context) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	res, err := h.svc.GetCategory(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateCategory(c.Request.Context(), actor(c), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Header("Location", "/categories/"+strconv.FormatInt(res.CategoryID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid json"))
		return
	}
	res, err := h.svc.UpdateCategory(c.Request.Context(), actor(c), id, req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if err := h.svc.DeleteCategory(c.Request.Context(), actor(c), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- books ----------

// GET /books?q=&category_id=&all=1
func (h *Handler) ListBooks(c *gin.Context) {
	catID, err := httpx.QueryID(c, "category_id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	q := BookQuery{
		Q:               c.Query("q"),
		CategoryID:      catID,
		IncludeInactive: httpx.ParseBoolish(c.Query("all")),
	}
	res, err := h.svc.ListBooks(c.Request.Context(), q, httpx.PageFrom(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetBook(c *gin.Context) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	res, err := h.svc.GetBook(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateBook(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateBook(c.Request.Context(), actor(c), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Header("Location", "/books/"+strconv.FormatInt(res.BookID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateBook(c *gin.Context) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid json"))
		return
	}
	res, err := h.svc.UpdateBook(c.Request.Context(), actor(c), id, req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteBook(c *gin.Context) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if err := h.svc.DeleteBook(c.Request.Context(), actor(c), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
