package reports

import (
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"

	"michibiblio-backend/internal/loans"
	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/auth"
	"michibiblio-backend/internal/platform/httpx"
)

type Handler struct {
	svc    *Service
	policy auth.Policy
}

func RegisterRoutes(r gin.IRoutes, svc *Service, p auth.Policy) {
	h := &Handler{svc: svc, policy: p}

	r.GET("/dashboard", auth.Require(p, auth.ActionViewDashboard), h.Dashboard)
	r.GET("/reports/loans", auth.Require(p, auth.ActionViewReport), h.Report)
	r.GET("/reports/summary", auth.Require(p, auth.ActionViewReport), h.Summary)
}

func (h *Handler) Dashboard(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	res, err := h.svc.Dashboard(c.Request.Context(), h.policy.Allow(id, auth.ActionViewReport))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /reports/loans?state=&category_id=&from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) Report(c *gin.Context) {
	f, err := filterFrom(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	res, err := h.svc.Report(c.Request.Context(), f, httpx.PageFrom(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Summary(c *gin.Context) {
	f, err := filterFrom(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	res, err := h.svc.Summary(c.Request.Context(), f)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": res})
}

func filterFrom(c *gin.Context) (Filter, error) {
	var (
		f   Filter
		err error
	)
	if v := strings.TrimSpace(c.Query("state")); v != "" {
		st := loans.State(strings.ToUpper(v))
		f.State = &st
	}
	if f.CategoryID, err = httpx.QueryID(c, "category_id"); err != nil {
		return Filter{}, err
	}
	if f.From, err = queryDate(c, "from"); err != nil {
		return Filter{}, err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func queryDate(c *gin.Context, name string) (*civil.Date, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return nil, apperr.Invalid(name + " must be YYYY-MM-DD")
	}
	return &d, nil
}
