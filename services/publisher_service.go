package services

import (
	"context"
	"fmt"

	"github.com/amirrezam75/coinrace/pkg/logx"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher forwards lifecycle events to whoever listens outside the
// process.
type Publisher interface {
	Publish(ctx context.Context, message string) error
}

type PublisherService struct {
	broker  *redis.Client
	channel string
}

func NewPublisherService(host, port, password, channel string) PublisherService {
	broker := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	if channel == "" {
		channel = "coinrace"
	}

	return PublisherService{broker: broker, channel: channel}
}

func (publisherService PublisherService) Publish(ctx context.Context, message string) error {
	if message == "" {
		return nil
	}

	err := publisherService.broker.Publish(ctx, publisherService.channel, message).Err()

	if err != nil {
		logx.Logger.Errorw(
			err.Error(),
			zap.String("desc", "could not publish message"),
			zap.String("message", message),
		)

		return err
	}

	return nil
}

func (publisherService PublisherService) Close() error {
	return publisherService.broker.Close()
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string) error { return nil }
