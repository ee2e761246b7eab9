package handlers

import (
	"net/http"

	"github.com/dhirajc963/timebrew.news/internal/brew"
	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/gin-gonic/gin"
)

type createBrewReq struct {
	Name         string   `json:"name" binding:"required,max=255"`
	Topics       []string `json:"topics" binding:"required,min=1,max=10"`
	DeliveryTime string   `json:"delivery_time" binding:"required,hhmm"`
}

func (h *Handler) CreateBrew(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req createBrewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json: "+err.Error())
		return
	}
	// the scheduler joins brews to their owner's profile
	if _, err := h.ensureUser(c, uid); err != nil {
		h.writeError(c, err)
		return
	}

	b, err := h.BrewSvc.Create(c.Request.Context(), uid, brew.CreateInput{
		Name:         req.Name,
		Topics:       req.Topics,
		DeliveryTime: req.DeliveryTime,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, b)
}

func (h *Handler) ListBrews(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	all := c.Query("include_inactive") == "true"
	list, err := h.BrewSvc.List(c.Request.Context(), uid, all)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"brews": list, "count": len(list)})
}

func (h *Handler) GetBrew(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	b, err := h.BrewSvc.Get(c.Request.Context(), uid, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, b)
}

type updateBrewReq struct {
	Name         *string  `json:"name" binding:"omitempty,max=255"`
	Topics       []string `json:"topics" binding:"omitempty,min=1,max=10"`
	DeliveryTime *string  `json:"delivery_time" binding:"omitempty,hhmm"`
	IsActive     *bool    `json:"is_active"`
}

func (h *Handler) UpdateBrew(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updateBrewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json: "+err.Error())
		return
	}
	b, err := h.BrewSvc.Update(c.Request.Context(), uid, id, brew.UpdateInput{
		Name:         req.Name,
		Topics:       req.Topics,
		DeliveryTime: req.DeliveryTime,
		IsActive:     req.IsActive,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, b)
}

func (h *Handler) DeleteBrew(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.BrewSvc.Deactivate(c.Request.Context(), uid, id); err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"id": id, "is_active": false})
}
