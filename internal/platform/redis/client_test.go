package redis

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcissuer/internal/platform/config"
)

type fixedStats redis.PoolStats

func (f fixedStats) PoolStats() *redis.PoolStats {
	s := redis.PoolStats(f)
	return &s
}

func TestPoolCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(newPoolCollector(fixedStats{Hits: 7, Misses: 2, TotalConns: 4, IdleConns: 3})))

	expected := `
# HELP vcissuer_redis_pool_hits_total Number of times a connection was found in the pool
# TYPE vcissuer_redis_pool_hits_total counter
vcissuer_redis_pool_hits_total 7
# HELP vcissuer_redis_pool_idle_conns Number of idle connections in the pool
# TYPE vcissuer_redis_pool_idle_conns gauge
vcissuer_redis_pool_idle_conns 3
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"vcissuer_redis_pool_hits_total", "vcissuer_redis_pool_idle_conns")
	assert.NoError(t, err)
	assert.Equal(t, 6, testutil.CollectAndCount(newPoolCollector(fixedStats{})))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), config.RedisConfig{URL: "http://not-redis"}, nil)
	assert.ErrorContains(t, err, "parse redis URL")
}
