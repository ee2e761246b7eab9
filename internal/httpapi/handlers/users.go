package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/httpapi/middleware"
	"github.com/dhirajc963/timebrew.news/internal/models"
	"github.com/gin-gonic/gin"
)

// ensureUser returns the caller's profile, creating it on first sight of
// a token from the identity provider.
func (h *Handler) ensureUser(c *gin.Context, uid uint64) (*models.User, error) {
	email := strings.TrimSpace(c.GetString(middleware.EmailKey))
	if email == "" {
		email = fmt.Sprintf("user-%d@users.invalid", uid)
	}
	var user models.User
	err := h.DB.WithContext(c.Request.Context()).
		Where(models.User{ID: uid}).
		Attrs(models.User{Email: email, Timezone: "UTC", IsActive: true}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func userView(u *models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"timezone":   u.Timezone,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt,
	}
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	user, err := h.ensureUser(c, uid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, userView(user))
}

type updateMeReq struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,max=100"`
	Timezone  *string `json:"timezone" binding:"omitempty,iana_tz"`
}

func (h *Handler) UpdateMe(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req updateMeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json: "+err.Error())
		return
	}

	user, err := h.ensureUser(c, uid)
	if err != nil {
		h.writeError(c, err)
		return
	}

	updates := map[string]any{}
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Timezone != nil {
		updates["timezone"] = *req.Timezone
	}
	if len(updates) > 0 {
		if err := h.DB.WithContext(c.Request.Context()).Model(user).Updates(updates).Error; err != nil {
			h.writeError(c, err)
			return
		}
		if err := h.DB.WithContext(c.Request.Context()).First(user, uid).Error; err != nil {
			h.writeError(c, err)
			return
		}
	}
	common.OK(c, userView(user))
}
