package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/brew"
	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/feedback"
	"github.com/dhirajc963/timebrew.news/internal/httpapi/middleware"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/dhirajc963/timebrew.news/internal/scheduler"
	"github.com/gin-gonic/gin"
)

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok && id != 0
}

func requireUser(c *gin.Context) (uint64, bool) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return uid, ok
}

func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid "+name)
		return 0, false
	}
	return id, true
}

// writeError maps domain errors onto the response envelope. Anything
// unrecognized is logged and reported as a generic 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		conflict *pipeline.ConflictError
		cooldown *scheduler.CooldownError
		invalid  *brew.ValidationError
	)
	switch {
	case errors.As(err, &invalid):
		common.Fail(c, http.StatusBadRequest, 10010, invalid.Error())
	case errors.Is(err, feedback.ErrInvalidReaction):
		common.Fail(c, http.StatusBadRequest, 10020, err.Error())
	case errors.Is(err, feedback.ErrInvalidPosition):
		common.Fail(c, http.StatusBadRequest, 10021, err.Error())
	case errors.Is(err, pipeline.ErrBrewInactive):
		common.Fail(c, http.StatusBadRequest, 10030, "brew is inactive")
	case errors.Is(err, brew.ErrNotFound), errors.Is(err, pipeline.ErrBrewNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "brew not found")
	case errors.Is(err, pipeline.ErrRunNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "run not found")
	case errors.Is(err, feedback.ErrNoBriefing):
		common.Fail(c, http.StatusNotFound, 40403, "briefing not ready")
	case errors.As(err, &conflict):
		common.FailWithData(c, http.StatusConflict, 40901, "a run is already in progress for this brew", gin.H{
			"run_id":     conflict.RunID,
			"stage":      conflict.Stage,
			"created_at": conflict.CreatedAt,
		})
	case errors.As(err, &cooldown):
		secs := int(cooldown.RetryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		common.FailWithData(c, http.StatusTooManyRequests, 42901, "trigger cooling down", gin.H{"retry_after": secs})
	default:
		h.log.WithContext(c.Request.Context()).Errorw("msg", "request failed",
			"path", c.FullPath(),
			"request_id", c.GetString(middleware.RequestIDKey),
			"err", err,
		)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
