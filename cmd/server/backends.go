package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-zookeeper/zk"
	"github.com/twmb/franz-go/pkg/kgo"

	"stash/internal/inventory/events"
	"stash/internal/inventory/metrics"
	"stash/internal/inventory/store"
	"stash/internal/platform/config"
	"stash/internal/platform/kafka"
	"stash/internal/platform/lock"
	"stash/internal/platform/postgres"
	"stash/internal/platform/redis"
	"stash/internal/platform/zookeeper"
	"stash/pkg/platform/circuit"
)

const (
	eventTopicPartitions = 3
	eventTopicReplicas   = 1
)

// backends holds the configured store, locker and event sink together with
// the connections they share.
type backends struct {
	store     store.Store
	locker    lock.Locker
	publisher *events.Async

	closers []func() error
}

func (b *backends) Close(ctx context.Context) error {
	var errs []error
	if b.publisher != nil {
		errs = append(errs, b.publisher.Close(ctx))
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// connections lazily opens each external client once, however many
// components need it.
type connections struct {
	cfg    config.Config
	logger *slog.Logger
	b      *backends

	redis *redis.Client
	zk    *zk.Conn
}

func (c *connections) redisClient(ctx context.Context) (*redis.Client, error) {
	if c.redis != nil {
		return c.redis, nil
	}
	client, err := redis.New(ctx, c.cfg.Redis)
	if err != nil {
		return nil, err
	}
	c.redis = client
	c.b.closers = append(c.b.closers, client.Close)
	return client, nil
}

func (c *connections) zkConn(ctx context.Context) (*zk.Conn, error) {
	if c.zk != nil {
		return c.zk, nil
	}
	conn, err := zookeeper.Connect(ctx, c.cfg.ZooKeeper, c.logger)
	if err != nil {
		return nil, err
	}
	c.zk = conn
	c.b.closers = append(c.b.closers, func() error { conn.Close(); return nil })
	return conn, nil
}

func buildBackends(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			_ = b.Close(context.WithoutCancel(ctx))
		}
	}()
	conns := &connections{cfg: cfg, logger: logger, b: b}

	if b.store, err = buildStore(ctx, cfg, conns); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if b.locker, err = buildLocker(ctx, cfg, conns); err != nil {
		return nil, fmt.Errorf("lock: %w", err)
	}
	sink, err := buildSink(ctx, cfg, logger, b)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	b.publisher = events.NewAsync(sink,
		events.WithBuffer(cfg.Events.Buffer),
		events.WithAsyncLogger(logger),
		events.WithDropCounter(m),
	)
	return b, nil
}

func buildStore(ctx context.Context, cfg config.Config, conns *connections) (store.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		client, err := conns.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return store.NewRedis(client.Client), nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		conns.b.closers = append(conns.b.closers, db.Close)
		st := store.NewPostgres(db)
		if err := st.Migrate(ctx); err != nil {
			return nil, err
		}
		return st, nil
	case "zookeeper":
		conn, err := conns.zkConn(ctx)
		if err != nil {
			return nil, err
		}
		return store.NewZooKeeper(conn, cfg.ZooKeeper.Root)
	default:
		return store.NewInMemory(), nil
	}
}

func buildLocker(ctx context.Context, cfg config.Config, conns *connections) (lock.Locker, error) {
	switch cfg.Lock.Backend {
	case "redis":
		client, err := conns.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return lock.NewRedis(client.Client, lock.WithLeaseTTL(cfg.Lock.LeaseTTL)), nil
	case "zookeeper":
		conn, err := conns.zkConn(ctx)
		if err != nil {
			return nil, err
		}
		return lock.NewZooKeeper(conn, cfg.ZooKeeper.Root+"/locks"), nil
	default:
		return lock.NewInMemory(), nil
	}
}

func buildSink(ctx context.Context, cfg config.Config, logger *slog.Logger, b *backends) (events.Publisher, error) {
	switch cfg.Events.Sink {
	case "kafka":
		client, err := kafka.New(ctx, cfg.Kafka, kgo.ClientID("stash"))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error { client.Close(); return nil })
		if err := events.EnsureTopic(ctx, client, cfg.Kafka.Topic, eventTopicPartitions, eventTopicReplicas); err != nil {
			return nil, err
		}
		return events.NewGuarded(
			events.NewKafka(client, cfg.Kafka.Topic),
			events.NewLogger(logger),
			circuit.New("kafka"),
			logger,
		), nil
	case "none":
		return events.Nop{}, nil
	default:
		return events.NewLogger(logger), nil
	}
}
