package configuration

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Unknownlegend09/Chathub/internal/db"
	"github.com/Unknownlegend09/Chathub/internal/handler"
	"github.com/Unknownlegend09/Chathub/internal/hub"
	"github.com/Unknownlegend09/Chathub/internal/model"
	"github.com/Unknownlegend09/Chathub/internal/repo"
)

type Container struct {
	UserHandler    handler.UserHandler
	MessageHandler handler.MessageHandler
	GroupHandler   handler.GroupHandler
	MonitorHandler handler.MonitorHandler
	Hub            *hub.Hub
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	con, err := db.OpenConnection(config.Mongo.Uri, config.Mongo.Database)
	if err != nil {
		return nil, err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	counters := db.NewCounters(con)
	messageRepo := repo.NewMessageRepository(
		db.NewRepository[model.Message](con, config.Mongo.MessagesCollection),
		counters,
		logger,
	)
	userRepo := repo.NewUserRepository(
		db.NewRepository[model.User](con, config.Mongo.UsersCollection),
		logger,
	)
	groupRepo := repo.NewGroupRepository(
		db.NewRepository[model.Group](con, config.Mongo.GroupsCollection),
		counters,
		logger,
	)

	metrics := hub.NewMetrics(prometheus.DefaultRegisterer)
	h := hub.New(messageRepo, userRepo, logger, metrics, hub.Options{
		Workers:        config.Hub.Workers,
		SendBuffer:     config.Hub.SendBuffer,
		TypingTTL:      time.Duration(config.Hub.TypingTTLSeconds) * time.Second,
		AllowedOrigins: config.Server.AllowedOrigins,
	})

	monitor := hub.NewMonitorService(h, userRepo)

	return &Container{
		UserHandler:    handler.NewUserHandler(userRepo, h.Presence, h),
		MessageHandler: handler.NewMessageHandler(h.Lifecycle, messageRepo),
		GroupHandler:   handler.NewGroupHandler(groupRepo),
		MonitorHandler: handler.NewMonitorHandler(monitor),
		Hub:            h,
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
	}, nil
}

// Close gracefully shuts down all connections.
func (c *Container) Close() error {
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
