package apperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeReferentialIntegrity, CodeInvalidTransition, CodeConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorDTO struct {
	Error struct {
		Code       Code        `json:"code"`
		Message    string      `json:"message"`
		Violations []Violation `json:"violations,omitempty"`
	} `json:"error"`
}

func Body(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func BodyFrom(err error) errorDTO {
	if e, ok := As(err); ok {
		b := Body(e.Code, e.Message)
		b.Error.Violations = e.Violations
		return b
	}
	// 内部エラーの詳細はレスポンスに出さない
	return Body(CodeInternal, "internal error")
}

// Respond はエラーを JSON で返す。500 はリクエストロガーに記録する。
func Respond(c *gin.Context, err error) {
	status := ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, BodyFrom(err))
}
