package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Unknownlegend09/Chathub/internal/hub"
)

// MonitorHandler serves the hub health snapshot.
type MonitorHandler interface {
	GetStats(c *gin.Context)
}

type monitorHandler struct {
	monitor *hub.MonitorService
}

func NewMonitorHandler(monitor *hub.MonitorService) MonitorHandler {
	return &monitorHandler{monitor: monitor}
}

func (h *monitorHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.GetStats(c.Request.Context()))
}
