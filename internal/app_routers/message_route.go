package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/Unknownlegend09/Chathub/internal/configuration"
)

func MessageRouters(api *gin.RouterGroup, container *configuration.Container) {
	api.GET("/messages", container.MessageHandler.ListMessages)
	api.POST("/messages", container.MessageHandler.CreateMessage)
	api.POST("/messages/:id/delivered", container.MessageHandler.MarkDelivered)
	api.POST("/messages/:id/read", container.MessageHandler.MarkRead)
	api.POST("/messages/read-all", container.MessageHandler.MarkAllRead)
}
