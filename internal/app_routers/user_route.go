package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/Unknownlegend09/Chathub/internal/configuration"
)

func UserRouters(api *gin.RouterGroup, container *configuration.Container) {
	api.GET("/users", container.UserHandler.ListUsers)
	api.POST("/activity/status", container.UserHandler.UpdateStatus)
	api.POST("/activity/typing", container.UserHandler.SetTyping)

	api.GET("/admin/activity", container.UserHandler.GetActivity)
	api.DELETE("/admin/users/:id", container.UserHandler.DeleteUser)
}
