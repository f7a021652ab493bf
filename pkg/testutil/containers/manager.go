//go:build integration

// Package containers starts shared testcontainers for integration suites.
//
// Containers are started lazily, once per test binary, and reused by every
// suite that asks for them. Ryuk reaps them when the binary exits.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out shared container instances.
type Manager struct {
	mu        sync.Mutex
	redis     *RedisContainer
	postgres  *PostgresContainer
	zookeeper *ZooKeeperContainer
	redpanda  *RedpandaContainer
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		m.redis = NewRedisContainer(t)
	}
	return m.redis
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postgres == nil {
		m.postgres = NewPostgresContainer(t)
	}
	return m.postgres
}

func (m *Manager) GetZooKeeper(t *testing.T) *ZooKeeperContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.zookeeper == nil {
		m.zookeeper = NewZooKeeperContainer(t)
	}
	return m.zookeeper
}

func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redpanda == nil {
		m.redpanda = NewRedpandaContainer(t)
	}
	return m.redpanda
}
