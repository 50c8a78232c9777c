package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/realtime"
)

const defaultChannel = "chartmotion-sse"

type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	// Buffer is the subscriber queue size; go-redis drops messages past it.
	Buffer int
}

func ConfigFromEnv() Config {
	return Config{
		Addr:     envutil.String("REDIS_ADDR", ""),
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
		Channel:  envutil.String("REDIS_CHANNEL", defaultChannel),
		Buffer:   envutil.Clamp(envutil.Int("REDIS_SUBSCRIBER_BUFFER", 1024), 64, 65536),
	}
}

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	buffer  int
}

// NewRedisBus connects and pings. Messages travel as JSON on one pub/sub channel.
func NewRedisBus(log *logger.Logger, cfg Config) (Bus, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Channel == "" {
		cfg.Channel = defaultChannel
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	b := &redisBus{
		log: log.With("component", "RedisBus", "channel", cfg.Channel),
		rdb: goredis.NewClient(&goredis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: 5 * time.Second,
		}),
		channel: cfg.Channel,
		buffer:  cfg.Buffer,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Ping(ctx); err != nil {
		_ = b.rdb.Close()
		return nil, err
	}
	return b, nil
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode bus message: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	ch := sub.Channel(goredis.WithChannelSize(b.buffer))
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					b.log.Warn("redis subscription closed")
					return
				}
				var msg realtime.SSEMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("dropping undecodable bus payload", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *redisBus) Ping(ctx context.Context) error {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (b *redisBus) Close() error { return b.rdb.Close() }
