package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// GenerateRequest 生成请求
type GenerateRequest struct {
	Config      *model.Config `json:"config"`
	DivisionIDs []string      `json:"division_ids" binding:"omitempty,dive,required"`
	Order       string        `json:"order" binding:"omitempty,oneof=labs_first hours_first"`
}

// Generate 生成课表
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.scheduler.Generate(c.Request.Context(), scheduler.GenerateRequest{
		Config:      req.Config,
		DivisionIDs: req.DivisionIDs,
		Order:       constraint.SessionOrder(req.Order),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListTimetables 查询生效课表
func (h *Handler) ListTimetables(c *gin.Context) {
	tables, err := h.scheduler.Timetables(c.Request.Context(), c.Query("year"), c.Query("division_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timetables": tables, "total": len(tables)})
}
