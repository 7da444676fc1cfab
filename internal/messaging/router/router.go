package router

import (
	"tutor_messaging_service/internal/messaging/app"
	"tutor_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// RegisterRoutes 注冊收件匣相關的路由
// @title Tutor Messaging Service API
// @version 1.0
// @description Direct messaging engine for the tutoring marketplace inboxes
// @host localhost:8084
// @BasePath /
func RegisterRoutes(r *fiber.App, inboxHandler *app.InboxHandler) {
	r.Get("/swagger/*", swagger.HandlerDefault)

	inboxRoutes := r.Group("/inbox")
	inboxRoutes.Use(middlewares.JWTMiddleware())
	inboxRoutes.Get("/conversations", inboxHandler.GetConversations)
	inboxRoutes.Get("/thread/:peerID", inboxHandler.GetThread)
	inboxRoutes.Post("/messages", inboxHandler.PostMessage)
	inboxRoutes.Post("/read", inboxHandler.PostRead)
}
