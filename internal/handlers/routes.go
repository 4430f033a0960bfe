package handlers

import "github.com/gin-gonic/gin"

// RegisterChatRoutes mounts the message API. Posting requires authMiddleware.
func RegisterChatRoutes(router gin.IRouter, h *ChatHandler, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api")

	api.GET("/messages", h.GroupFeed)
	api.POST("/messages", authMiddleware, h.PostMessage)
	api.GET("/messages/private/:userA/:userB", h.PrivateHistory)
	api.GET("/conversations/:userId", h.Conversations)

	chat := api.Group("/chat")
	chat.POST("/send", authMiddleware, h.SendPrivateMessage)
	chat.GET("/private/:userA/:userB", h.PrivateHistory)
	chat.GET("/conversations/:userId", h.Conversations)
}
