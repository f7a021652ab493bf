package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stash/internal/platform/config"
)

func TestOptions(t *testing.T) {
	t.Run("applies overrides", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{
			URL:         "redis://localhost:6380/2",
			PoolSize:    7,
			DialTimeout: time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "localhost:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 7, opts.PoolSize)
		assert.Equal(t, time.Second, opts.DialTimeout)
	})

	t.Run("rejects empty url", func(t *testing.T) {
		_, err := Options(config.RedisConfig{})
		assert.Error(t, err)
	})

	t.Run("rejects malformed url", func(t *testing.T) {
		_, err := Options(config.RedisConfig{URL: "http://nope"})
		assert.Error(t, err)
	})
}
