package handlers

import (
	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/gin-gonic/gin"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
