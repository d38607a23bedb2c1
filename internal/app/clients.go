package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/coursemarket-backend/internal/clients/redis"
	"github.com/yungbote/coursemarket-backend/internal/platform/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/notify"
	"github.com/yungbote/coursemarket-backend/internal/platform/payments"
	"github.com/yungbote/coursemarket-backend/internal/platform/sendgrid"
)

// Clients are the external collaborators: gateway, event bus and mailer.
type Clients struct {
	Processor payments.Processor
	Events    events.Publisher
	Notifier  notify.Notifier

	bus redis.EventBus
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Payments
	var processor payments.Processor
	switch cfg.Processor {
	case ProcessorMidtrans:
		p, err := payments.NewMidtrans(log, cfg.Midtrans)
		if err != nil {
			return Clients{}, fmt.Errorf("init midtrans processor: %w", err)
		}
		processor = p
	default:
		processor = payments.NewMock(log, cfg.Mock)
	}

	// Redis
	var (
		bus       redis.EventBus
		publisher events.Publisher = events.NewNoop(log)
	)
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		b, err := redis.NewEventBus(log, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		bus, publisher = b, b
	}

	// Sendgrid
	notifier := notify.NewNoop(log)
	if sgCfg := sendgrid.ConfigFromEnv(); sgCfg.APIKey != "" {
		sg, err := sendgrid.New(log, sgCfg)
		if err != nil {
			if bus != nil {
				_ = bus.Close()
			}
			return Clients{}, fmt.Errorf("init sendgrid client: %w", err)
		}
		notifier = notify.NewEmail(log, sg)
	}

	log.Info("clients ready", "processor", processor.Name(), "events_redis", bus != nil)
	return Clients{
		Processor: processor,
		Events:    publisher,
		Notifier:  notifier,
		bus:       bus,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.bus != nil {
		_ = c.bus.Close()
	}
}
