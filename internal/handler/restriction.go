package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
)

// CreateRestrictionRequest 注册预约限制
type CreateRestrictionRequest struct {
	Scope    string   `json:"scope" binding:"required,oneof=global year"`
	Years    []string `json:"years"`
	Slots    []int    `json:"slots" binding:"required,min=1,dive,min=1"`
	Days     []int    `json:"days" binding:"required,min=1,dive,min=0,max=7"`
	Priority int      `json:"priority"`
	Reason   string   `json:"reason"`
}

// ListRestrictions 列出全部预约限制
func (h *Handler) ListRestrictions(c *gin.Context) {
	items := h.scheduler.Registry().All()
	c.JSON(http.StatusOK, gin.H{"restrictions": items, "total": len(items)})
}

// CreateRestriction 注册预约限制
func (h *Handler) CreateRestriction(c *gin.Context) {
	var req CreateRestrictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res := &model.Restriction{
		Scope:    model.RestrictionScope(req.Scope),
		Years:    req.Years,
		Slots:    req.Slots,
		Days:     req.Days,
		Priority: req.Priority,
		Reason:   req.Reason,
	}
	if err := h.scheduler.RegisterRestriction(c.Request.Context(), res); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// CheckSlot 查询节次是否被封锁
func (h *Handler) CheckSlot(c *gin.Context) {
	slot, err := strconv.Atoi(c.Query("slot"))
	if err != nil {
		respondError(c, errors.InvalidInput("slot", "必须是整数"))
		return
	}
	day, err := strconv.Atoi(c.Query("day"))
	if err != nil {
		respondError(c, errors.InvalidInput("day", "必须是整数"))
		return
	}

	booking := h.scheduler.CheckSlot(slot, day, c.Query("year"))
	c.JSON(http.StatusOK, gin.H{"blocked": booking != nil, "restriction": booking})
}
