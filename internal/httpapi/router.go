package httpapi

import (
	"net/http"

	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/config"
	"github.com/dhirajc963/timebrew.news/internal/httpapi/handlers"
	"github.com/dhirajc963/timebrew.news/internal/httpapi/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, deps handlers.Deps, logger log.Logger) *gin.Engine {
	handlers.RegisterValidators()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(logger))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, deps, logger)

	r.GET("/ping", h.Ping)

	// identity comes from the provider's JWT
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.PUT("/me", h.UpdateMe)

	// brews
	authGroup.POST("/brews", h.CreateBrew)
	authGroup.GET("/brews", h.ListBrews)
	authGroup.GET("/brews/:id", h.GetBrew)
	authGroup.PUT("/brews/:id", h.UpdateBrew)
	authGroup.DELETE("/brews/:id", h.DeleteBrew)

	// pipeline
	authGroup.POST("/trigger", h.TriggerBrew)
	authGroup.GET("/runs/:run_id", h.GetRun)

	// briefings and feedback
	authGroup.GET("/briefings", h.ListBriefings)
	authGroup.GET("/briefings/:run_id", h.GetBriefing)
	authGroup.POST("/feedback", h.SubmitFeedback)
	authGroup.GET("/feedback/:run_id", h.FeedbackStatus)
	return r
}
