package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/Unknownlegend09/Chathub/internal/configuration"
)

func MonitorRouters(api *gin.RouterGroup, container *configuration.Container) {
	api.GET("/monitor", container.MonitorHandler.GetStats)
}
