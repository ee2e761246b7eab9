package handlers

import (
	"net/http"
	"strconv"

	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListBriefings(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	brewID, err := strconv.ParseUint(c.Query("brew_id"), 10, 64)
	if err != nil || brewID == 0 {
		common.Fail(c, http.StatusBadRequest, 10004, "brew_id is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := h.BriefingSvc.List(c.Request.Context(), uid, brewID, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, page)
}

func (h *Handler) GetBriefing(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	d, err := h.BriefingSvc.Get(c.Request.Context(), uid, c.Param("run_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, d)
}
