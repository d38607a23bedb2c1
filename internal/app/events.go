package app

import (
	"context"
	"errors"
	"strings"

	"github.com/yungbote/coursemarket-backend/internal/clients/redis"
	"github.com/yungbote/coursemarket-backend/internal/platform/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

var ErrEventsDisabled = errors.New("REDIS_ADDR is not set; domain events are not published anywhere")

// TailEvents subscribes to the domain event channel and calls onEvent for each event
// until ctx ends.
func TailEvents(ctx context.Context, log *logger.Logger, cfg Config, onEvent func(events.Event)) error {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return ErrEventsDisabled
	}
	bus, err := redis.NewEventBus(log, redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Channel:  cfg.RedisChannel,
	})
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := bus.StartForwarder(ctx, onEvent); err != nil {
		return err
	}
	log.Info("tailing domain events", "channel", cfg.RedisChannel)
	<-ctx.Done()
	return nil
}
