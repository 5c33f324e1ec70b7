// Package redis opens the go-redis client behind the Redis session store and
// exports its pool statistics.
package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"vcissuer/internal/platform/config"
)

type Client struct {
	*redis.Client
}

// New parses cfg.URL, applies the pool overrides and pings. When reg is not
// nil the pool statistics are registered on it.
func New(ctx context.Context, cfg config.RedisConfig, reg prometheus.Registerer) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis url is required")
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
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	c := &Client{Client: client}
	if reg != nil {
		if err := reg.Register(newPoolCollector(client)); err != nil {
			client.Close() //nolint:errcheck // best-effort cleanup on init failure
			return nil, fmt.Errorf("register redis pool metrics: %w", err)
		}
	}
	return c, nil
}

func (c *Client) Name() string {
	return "redis"
}

func (c *Client) Check(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// statsSource is the part of *redis.Client the collector reads.
type statsSource interface {
	PoolStats() *redis.PoolStats
}

// poolCollector reads pool statistics at scrape time.
type poolCollector struct {
	source     statsSource
	hits       *prometheus.Desc
	misses     *prometheus.Desc
	timeouts   *prometheus.Desc
	staleConns *prometheus.Desc
	totalConns *prometheus.Desc
	idleConns  *prometheus.Desc
}

func newPoolCollector(source statsSource) *poolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("vcissuer_redis_pool_"+name, help, nil, nil)
	}
	return &poolCollector{
		source:     source,
		hits:       desc("hits_total", "Number of times a connection was found in the pool"),
		misses:     desc("misses_total", "Number of times a connection was not found in the pool"),
		timeouts:   desc("timeouts_total", "Number of times a connection was not obtained due to timeout"),
		staleConns: desc("stale_conns_total", "Number of stale connections removed from the pool"),
		totalConns: desc("total_conns", "Number of total connections in the pool"),
		idleConns:  desc("idle_conns", "Number of idle connections in the pool"),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.staleConns
	ch <- c.totalConns
	ch <- c.idleConns
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.PoolStats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(stats.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.staleConns, prometheus.CounterValue, float64(stats.StaleConns))
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stats.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stats.IdleConns))
}
