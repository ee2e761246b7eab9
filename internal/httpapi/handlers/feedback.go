package handlers

import (
	"net/http"

	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/feedback"
	"github.com/gin-gonic/gin"
)

type feedbackReq struct {
	RunID           string `json:"run_id" binding:"required"`
	ArticlePosition int    `json:"article_position" binding:"min=0"`
	FeedbackType    string `json:"feedback_type" binding:"required"`
}

// SubmitFeedback toggles a like or dislike; position 0 rates the whole
// briefing.
func (h *Handler) SubmitFeedback(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json: "+err.Error())
		return
	}
	res, err := h.FeedbackSvc.Toggle(c.Request.Context(), uid, req.RunID, req.ArticlePosition, feedback.Reaction(req.FeedbackType))
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) FeedbackStatus(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	st, err := h.FeedbackSvc.Status(c.Request.Context(), uid, c.Param("run_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, st)
}
