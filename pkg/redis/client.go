package redis

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is the connection the change-notification stream is written to.
// It doubles as the redis health checker.
type Client struct {
	rdb    *redis.Client
	logger ectologger.Logger
}

// NewClient dials redis and fails unless the server answers a ping within
// connectTimeout.
func NewClient(ctx context.Context, cfg Config, logger ectologger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	client := &Client{rdb: rdb, logger: logger}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", cfg.addr())
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"addr": cfg.addr(),
		"db":   cfg.DB,
	}).Info("Connected to redis")
	return client, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
