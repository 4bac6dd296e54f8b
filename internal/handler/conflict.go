package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/resolution"
)

// ResolveAction 对某个冲突的操作
type ResolveAction struct {
	Index  *int   `json:"index" binding:"required,min=0"`
	Action string `json:"action" binding:"required,oneof=ignore auto_resolve manual_review relax_constraints"`
}

// ResolveRequest 批量解决请求
type ResolveRequest struct {
	Actions []ResolveAction `json:"actions" binding:"required,min=1,dive"`
}

// ListConflicts 返回当前冲突列表
func (h *Handler) ListConflicts(c *gin.Context) {
	report, err := h.scheduler.Conflicts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DetectConflicts 重新检测冲突
func (h *Handler) DetectConflicts(c *gin.Context) {
	report, err := h.scheduler.Detect(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ResolveConflicts 批量应用解决操作，单个操作失败不影响其它操作
func (h *Handler) ResolveConflicts(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	actions := make(map[int]resolution.Action, len(req.Actions))
	for _, a := range req.Actions {
		if _, dup := actions[*a.Index]; dup {
			respondError(c, errors.InvalidInput("actions", fmt.Sprintf("冲突 %d 重复指定了操作", *a.Index)))
			return
		}
		actions[*a.Index] = resolution.Action(a.Action)
	}

	outcomes, report, err := h.scheduler.Resolve(c.Request.Context(), actions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes, "conflicts": report})
}
