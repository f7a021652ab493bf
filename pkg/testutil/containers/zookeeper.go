//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ZooKeeperContainer wraps a generic ZooKeeper container.
type ZooKeeperContainer struct {
	Container testcontainers.Container
	Addr      string
	Conn      *zk.Conn
}

// NewZooKeeperContainer starts a single-node ZooKeeper ensemble.
func NewZooKeeperContainer(t *testing.T) *ZooKeeperContainer {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "zookeeper:3.9",
			ExposedPorts: []string{"2181/tcp"},
			WaitingFor:   wait.ForListeningPort("2181/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start zookeeper container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get zookeeper host: %v", err)
	}
	port, err := container.MappedPort(ctx, "2181/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get zookeeper port: %v", err)
	}
	addr := fmt.Sprintf("%s:%s", host, port.Port())

	conn, _, err := zk.Connect([]string{addr}, 10*time.Second)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to zookeeper: %v", err)
	}

	return &ZooKeeperContainer{
		Container: container,
		Addr:      addr,
		Conn:      conn,
	}
}

// DeleteTree removes p and all of its descendants.
func (z *ZooKeeperContainer) DeleteTree(p string) error {
	children, _, err := z.Conn.Children(p)
	if err == zk.ErrNoNode {
		return nil
	}
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := z.DeleteTree(p + "/" + child); err != nil {
			return err
		}
	}
	if err := z.Conn.Delete(p, -1); err != nil && err != zk.ErrNoNode {
		return err
	}
	return nil
}
