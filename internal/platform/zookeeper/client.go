// Package zookeeper connects to an ensemble and waits for a session.
package zookeeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-zookeeper/zk"

	"stash/internal/platform/config"
)

// Connect dials cfg.Servers and blocks until the session is established or ctx ends.
func Connect(ctx context.Context, cfg config.ZooKeeperConfig, logger *slog.Logger) (*zk.Conn, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("zookeeper servers are empty")
	}
	conn, events, err := zk.Connect(cfg.Servers, cfg.SessionTimeout, zk.WithLogger(slogAdapter{logger}))
	if err != nil {
		return nil, fmt.Errorf("connect zookeeper: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, fmt.Errorf("wait for zookeeper session: %w", ctx.Err())
		case ev, ok := <-events:
			if !ok {
				conn.Close()
				return nil, fmt.Errorf("zookeeper event channel closed")
			}
			if ev.State == zk.StateHasSession {
				go drain(events)
				return conn, nil
			}
		}
	}
}

// drain keeps the session event channel from blocking the client.
func drain(events <-chan zk.Event) {
	for range events {
	}
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(format string, args ...any) {
	if a.logger == nil {
		return
	}
	a.logger.Debug(fmt.Sprintf(format, args...), "component", "zookeeper")
}
