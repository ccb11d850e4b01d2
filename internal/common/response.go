package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// StatusOf maps an error kind to the HTTP status and envelope code.
func StatusOf(err error) (httpStatus int, code int) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound, 40400
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest, 40000
	case apperr.KindInvalidState:
		return http.StatusConflict, 40900
	default:
		return http.StatusInternalServerError, 50000
	}
}

// FailErr writes err through the envelope. Internal errors only ever expose
// the generic message.
func FailErr(c *gin.Context, err error) {
	status, code := StatusOf(err)
	Fail(c, status, code, apperr.PublicMessage(err))
}
