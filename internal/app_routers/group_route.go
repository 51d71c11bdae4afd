package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/Unknownlegend09/Chathub/internal/configuration"
)

func GroupRouters(api *gin.RouterGroup, container *configuration.Container) {
	api.GET("/groups", container.GroupHandler.ListGroups)
	api.POST("/groups", container.GroupHandler.CreateGroup)
}
