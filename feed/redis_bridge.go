package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisBridge は複数のサーバープロセス間で変更通知を共有します。
// 自プロセスの変更は Hub に直接通知し、Redis にも publish します。
// 他プロセスから届いた通知は Hub に流します。
type RedisBridge struct {
	client   *redis.Client
	channel  string
	instance string
	hub      *Hub
	logger   *logrus.Logger
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}

func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger *logrus.Logger) *RedisBridge {
	return &RedisBridge{
		client:   client,
		channel:  channel,
		instance: uuid.NewString(),
		hub:      hub,
		logger:   logger,
	}
}

func encodeMessage(instance, visitDate string) string {
	return instance + "|" + visitDate
}

func parseMessage(payload string) (instance, visitDate string, err error) {
	instance, visitDate, ok := strings.Cut(payload, "|")
	if !ok || instance == "" || visitDate == "" {
		return "", "", fmt.Errorf("invalid feed message %q", payload)
	}
	return instance, visitDate, nil
}

func (b *RedisBridge) Notify(visitDate string) {
	b.hub.Notify(visitDate)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, encodeMessage(b.instance, visitDate)).Err(); err != nil {
		b.logger.WithField("visitDate", visitDate).Warnf("redis publish failed: %v", err)
	}
}

// Run は ctx が終わるまで他プロセスの通知を受信します。購読に失敗した場合はログに残して終了します。
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		b.logger.WithField("channel", b.channel).Warnf("redis subscribe failed: %v", err)
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	b.logger.WithField("channel", b.channel).Info("redis feed bridge subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("redis feed channel closed")
				return nil
			}
			b.relay(msg.Payload)
		}
	}
}

func (b *RedisBridge) relay(payload string) {
	instance, visitDate, err := parseMessage(payload)
	if err != nil {
		b.logger.Warn(err.Error())
		return
	}
	if instance == b.instance {
		return
	}
	b.hub.Notify(visitDate)
}
