package loans

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/auth"
	"michibiblio-backend/internal/platform/httpx"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service, p auth.Policy) {
	h := &Handler{svc: svc}

	r.GET("/loans", auth.Require(p, auth.ActionViewLoans), h.ListLoans)
	r.GET("/loans/:key", auth.Require(p, auth.ActionViewLoans), h.GetLoan)
	r.POST("/loans", auth.Require(p, auth.ActionCreateLoan), h.CreateLoan)
	r.POST("/loans/:key/return", auth.Require(p, auth.ActionReturnLoan), h.ReturnLoan)
	r.POST("/loans/:key/stolen", auth.Require(p, auth.ActionMarkStolen), h.MarkStolen)

	// 在庫の修復
	r.POST("/books/:id/recompute", auth.Require(p, auth.ActionRepairInventory), h.Recompute)
}

func actor(c *gin.Context) string {
	id, _ := auth.IdentityFrom(c)
	return id.Subject
}

// GET /loans?state=LENT&reader_id=&book_id=&limit=&offset=
func (h *Handler) ListLoans(c *gin.Context) {
	var (
		f   LoanFilter
		err error
	)
	if v := c.Query("state"); v != "" {
		st := State(strings.ToUpper(v))
		f.State = &st
	}
	if f.ReaderID, err = httpx.QueryID(c, "reader_id"); err != nil {
		apperr.Respond(c, err)
		return
	}
	if f.BookID, err = httpx.QueryID(c, "book_id"); err != nil {
		apperr.Respond(c, err)
		return
	}

	res, err := h.svc.ListLoans(c.Request.Context(), f, httpx.PageFrom(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetLoan(c *gin.Context) {
	res, err := h.svc.GetLoan(c.Request.Context(), c.Param("key"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateLoan(c *gin.Context) {
	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid json"))
		return
	}
	res, err := h.svc.CreateLoan(c.Request.Context(), actor(c), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Header("Location", "/loans/"+strconv.FormatInt(res.LoanID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ReturnLoan(c *gin.Context) {
	res, err := h.svc.ReturnLoan(c.Request.Context(), actor(c), c.Param("key"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MarkStolen(c *gin.Context) {
	res, err := h.svc.MarkStolen(c.Request.Context(), actor(c), c.Param("key"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Recompute(c *gin.Context) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	res, err := h.svc.RecomputeAvailability(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
