package readers

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
	manage := auth.Require(p, auth.ActionManageReaders)

	r.GET("/readers", manage, h.List)
	r.GET("/readers/:id", manage, h.Get)
	r.POST("/readers", manage, h.Create)
	r.PUT("/readers/:id", manage, h.Update)
	r.DELETE("/readers/:id", auth.Require(p, auth.ActionDeleteReader), h.Delete)
}

func actor(c *gin.Context) string {
	id, _ := auth.IdentityFrom(c)
	return id.Subject
}

// GET /readers?q=&all=1
func (h *Handler) List(c *gin.Context) {
	q := ReaderQuery{Q: c.Query("q"), IncludeInactive: httpx.ParseBoolish(c.Query("all"))}
	res, err := h.svc.List(c.Request.Context(), q, httpx.PageFrom(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateReaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid json"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Header("Location", "/readers/"+strconv.FormatInt(res.ReaderID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	var req UpdateReaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Invalid("invalid json"))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), actor(c), id, req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), actor(c), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
