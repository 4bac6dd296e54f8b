package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kebiao/kebiao/internal/constraints"
)

// ListRules 排课规则目录
func (h *Handler) ListRules(c *gin.Context) {
	c.JSON(http.StatusOK, constraints.GetLibraryResponse())
}
