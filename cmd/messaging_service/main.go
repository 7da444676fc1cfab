package main

import (
	"fmt"
	"time"

	"tutor_messaging_service/internal/messaging/app"
	"tutor_messaging_service/internal/messaging/repository"
	"tutor_messaging_service/internal/messaging/router"
	"tutor_messaging_service/pkg/config"
	"tutor_messaging_service/pkg/database"
	"tutor_messaging_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceLogPath)
	cfg := config.LoadConfig[config.Messaging](config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceYAMLPath)

	// 1. 建立 Redis 連線 (收件匣 snapshot)
	var snapshots repository.SnapshotRepository
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		// snapshot 只是少了第一屏，服務照常起
		logger.Log.Warn(fmt.Sprintf("connect redis err : %v, inbox snapshots disabled", err))
	} else {
		snapshots = repository.NewSnapshotRepository(redisClient, cfg.SnapshotTTL)
	}

	// 2. 建立 marketplace API transport
	transport := repository.NewHTTPTransport(
		cfg.Marketplace.BaseURL,
		time.Duration(cfg.Marketplace.Timeout)*time.Second,
	)

	// 3. 初始化 UseCase 與 Handler
	inboxUseCase := app.NewInboxUseCase(transport, snapshots)
	inboxHandler := app.NewInboxHandler(inboxUseCase)

	// 4. 啟動 Fiber
	fiberApp := fiber.New()
	fiberApp.Use(fiber_log.New())

	router.RegisterRoutes(fiberApp, inboxHandler)

	logger.Log.Info("messaging service start", zap.String("port", cfg.Port))
	if err := fiberApp.Listen(":" + cfg.Port); err != nil {
		logger.Log.Fatal(fmt.Sprintf("messaging service listen err : %v", err))
	}
}
