package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Stats 教师课时和教室利用率
func (h *Handler) Stats(c *gin.Context) {
	report, err := h.scheduler.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
