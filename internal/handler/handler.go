// Package handler 提供HTTP请求处理器
package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/scheduler"
)

// Handler 排课接口处理器
type Handler struct {
	scheduler *scheduler.Scheduler
	version   string
}

// New 创建处理器
func New(s *scheduler.Scheduler, version string) *Handler {
	return &Handler{scheduler: s, version: version}
}

// Register 注册路由
func (h *Handler) Register(r *gin.Engine, prefix string) {
	r.GET("/health", h.Health)
	r.GET("/version", h.Version)

	api := r.Group(prefix)
	{
		api.POST("/timetables/generate", h.Generate)
		api.GET("/timetables", h.ListTimetables)

		api.GET("/conflicts", h.ListConflicts)
		api.POST("/conflicts/detect", h.DetectConflicts)
		api.POST("/conflicts/resolve", h.ResolveConflicts)

		api.GET("/restrictions", h.ListRestrictions)
		api.POST("/restrictions", h.CreateRestriction)
		api.GET("/restrictions/check", h.CheckSlot)

		api.GET("/stats/workload", h.Stats)

		api.GET("/rules", h.ListRules)
	}
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Version 版本信息
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": h.version})
}

// respondError 返回错误响应
func respondError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(err, errors.CodeInternal, "服务器内部错误")
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error().Err(err).Msg("请求处理失败")
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
		"fields":  appErr.Fields,
	})
}

// bindError 请求体解析/校验失败
func bindError(c *gin.Context, err error) {
	respondError(c, errors.Wrap(err, errors.CodeInvalidInput, "请求参数无效").WithDetails(err.Error()))
}
