package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
)

// Recovery turns a handler panic into the standard 500 envelope.
func Recovery(logger log.Logger) gin.HandlerFunc {
	h := log.NewHelper(log.With(logger, "module", "httpapi"))
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				h.WithContext(c.Request.Context()).Errorw("msg", "panic",
					"path", c.Request.URL.Path,
					"request_id", c.GetString(RequestIDKey),
					"panic", r,
					"stack", string(debug.Stack()),
				)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
