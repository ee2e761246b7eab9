package handlers

import (
	"net/http"

	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/gin-gonic/gin"
)

type triggerReq struct {
	BrewID uint64 `json:"brew_id" binding:"required"`
}

// TriggerBrew starts a run outside the regular schedule. The pipeline
// continues out of band; poll GET /runs/:run_id.
func (h *Handler) TriggerBrew(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req triggerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	run, err := h.Trigger.Trigger(c.Request.Context(), uid, req.BrewID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.Accepted(c, runView(run))
}

func (h *Handler) GetRun(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	run, err := h.Coord.GetRunForUser(c.Request.Context(), c.Param("run_id"), uid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, runView(run))
}

func runView(r *pipeline.Run) gin.H {
	return gin.H{
		"run_id":        r.RunID,
		"brew_id":       r.BrewID,
		"stage":         r.CurrentStage,
		"failed_stage":  r.FailedStage,
		"error_message": r.ErrorMessage,
		"created_at":    r.CreatedAt,
		"updated_at":    r.UpdatedAt,
	}
}
