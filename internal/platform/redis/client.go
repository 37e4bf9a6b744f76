package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"registrar/internal/platform/config"
)

// Client wraps the go-redis client with health checking capabilities.
type Client struct {
	*redis.Client
}

// New creates a new Redis client from the provided configuration.
// Returns nil if the URL is empty (Redis not configured).
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return fmt.Errorf("redis not configured")
	}
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// PoolMetrics exposes connection pool statistics.
type PoolMetrics struct {
	TotalConns prometheus.Gauge
	IdleConns  prometheus.Gauge
	StaleConns prometheus.Gauge
	Timeouts   prometheus.Gauge
}

// NewPoolMetrics registers Redis pool gauges.
func NewPoolMetrics() *PoolMetrics {
	return &PoolMetrics{
		TotalConns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "registrar_redis_pool_total_conns",
			Help: "Total connections in the Redis pool",
		}),
		IdleConns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "registrar_redis_pool_idle_conns",
			Help: "Idle connections in the Redis pool",
		}),
		StaleConns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "registrar_redis_pool_stale_conns",
			Help: "Stale connections removed from the Redis pool",
		}),
		Timeouts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "registrar_redis_pool_timeouts",
			Help: "Times a connection wait timed out",
		}),
	}
}

// RecordPoolStats copies the current pool statistics into m.
func (c *Client) RecordPoolStats(m *PoolMetrics) {
	if c == nil || c.Client == nil || m == nil {
		return
	}
	stats := c.PoolStats()
	m.TotalConns.Set(float64(stats.TotalConns))
	m.IdleConns.Set(float64(stats.IdleConns))
	m.StaleConns.Set(float64(stats.StaleConns))
	m.Timeouts.Set(float64(stats.Timeouts))
}
