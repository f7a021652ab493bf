package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Minute, cfg.Reservation.DefaultTTL)
	assert.Equal(t, 5*time.Second, cfg.Lock.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Sweeper.Interval)
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
reservation:
  default_ttl: 2m
store:
  backend: redis
lock:
  backend: redis
redis:
  url: redis://localhost:6379/0
`), 0o600))

	t.Setenv("STASH_RESERVATION_TTL", "90s")
	t.Setenv("STASH_ZOOKEEPER_SERVERS", "zk1:2181, zk2:2181,")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 90*time.Second, cfg.Reservation.DefaultTTL, "env overrides file")
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, []string{"zk1:2181", "zk2:2181"}, cfg.ZooKeeper.Servers)
	assert.Equal(t, 5*time.Second, cfg.Lock.Timeout, "untouched defaults survive")
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed env duration", func(t *testing.T) {
		t.Setenv("STASH_LOCK_TIMEOUT", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "STASH_LOCK_TIMEOUT")
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"non-positive ttl", func(c *Config) { c.Reservation.DefaultTTL = 0 }, "default_ttl"},
		{"unknown store", func(c *Config) { c.Store.Backend = "etcd" }, "store.backend"},
		{"redis store without url", func(c *Config) { c.Store.Backend = "redis"; c.Lock.Backend = "redis" }, "redis.url"},
		{"memory lock over shared store", func(c *Config) {
			c.Store.Backend = "postgres"
			c.Postgres.DSN = "postgres://x"
		}, "lock.backend memory"},
		{"zookeeper lock without servers", func(c *Config) { c.Lock.Backend = "zookeeper" }, "zookeeper.servers"},
		{"kafka sink without brokers", func(c *Config) { c.Events.Sink = "kafka" }, "kafka.brokers"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}

func TestApplyEnvWithLookup(t *testing.T) {
	env := map[string]string{
		"STASH_SWEEPER_ENABLED":     "false",
		"STASH_SWEEPER_CONCURRENCY": "8",
		"STASH_KAFKA_BROKERS":       "b1:9092,b2:9092",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.False(t, cfg.Sweeper.Enabled)
	assert.Equal(t, 8, cfg.Sweeper.Concurrency)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
}
