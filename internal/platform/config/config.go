// Package config loads service configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// STASH_* environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "STASH_"

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Reservation struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

type Lock struct {
	Backend  string        `yaml:"backend"`
	Timeout  time.Duration `yaml:"timeout"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

type Store struct {
	Backend string `yaml:"backend"`
}

type Sweeper struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type ZooKeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	Root           string        `yaml:"root"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Events selects where lifecycle events go.
type Events struct {
	Sink   string `yaml:"sink"`
	Buffer int    `yaml:"buffer"`
}

type Config struct {
	Server      Server          `yaml:"server"`
	Log         Log             `yaml:"log"`
	Reservation Reservation     `yaml:"reservation"`
	Lock        Lock            `yaml:"lock"`
	Store       Store           `yaml:"store"`
	Sweeper     Sweeper         `yaml:"sweeper"`
	Events      Events          `yaml:"events"`
	Redis       RedisConfig     `yaml:"redis"`
	Postgres    PostgresConfig  `yaml:"postgres"`
	ZooKeeper   ZooKeeperConfig `yaml:"zookeeper"`
	Kafka       KafkaConfig     `yaml:"kafka"`
}

// Default returns a configuration for a single in-memory instance.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:         Log{Level: "info", Format: "json"},
		Reservation: Reservation{DefaultTTL: 15 * time.Minute},
		Lock: Lock{
			Backend:  "memory",
			Timeout:  5 * time.Second,
			LeaseTTL: 30 * time.Second,
		},
		Store: Store{Backend: "memory"},
		Sweeper: Sweeper{
			Enabled:     true,
			Interval:    5 * time.Second,
			Concurrency: 4,
		},
		Events: Events{Sink: "log", Buffer: 1024},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{MaxOpenConns: 10, MaxIdleConns: 5},
		ZooKeeper: ZooKeeperConfig{
			SessionTimeout: 10 * time.Second,
			Root:           "/stash",
		},
		Kafka: KafkaConfig{Topic: "stash.inventory.events"},
	}
}

// Load builds the configuration. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = splitList(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(envPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("ADDR", &c.Server.Addr)
	dur("REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	dur("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	dur("RESERVATION_TTL", &c.Reservation.DefaultTTL)
	str("LOCK_BACKEND", &c.Lock.Backend)
	dur("LOCK_TIMEOUT", &c.Lock.Timeout)
	dur("LOCK_LEASE_TTL", &c.Lock.LeaseTTL)
	str("STORE_BACKEND", &c.Store.Backend)
	flag("SWEEPER_ENABLED", &c.Sweeper.Enabled)
	dur("SWEEPER_INTERVAL", &c.Sweeper.Interval)
	num("SWEEPER_CONCURRENCY", &c.Sweeper.Concurrency)
	str("EVENTS_SINK", &c.Events.Sink)
	num("EVENTS_BUFFER", &c.Events.Buffer)
	str("REDIS_URL", &c.Redis.URL)
	num("REDIS_POOL_SIZE", &c.Redis.PoolSize)
	str("POSTGRES_DSN", &c.Postgres.DSN)
	num("POSTGRES_MAX_OPEN_CONNS", &c.Postgres.MaxOpenConns)
	list("ZOOKEEPER_SERVERS", &c.ZooKeeper.Servers)
	dur("ZOOKEEPER_SESSION_TIMEOUT", &c.ZooKeeper.SessionTimeout)
	str("ZOOKEEPER_ROOT", &c.ZooKeeper.Root)
	list("KAFKA_BROKERS", &c.Kafka.Brokers)
	str("KAFKA_TOPIC", &c.Kafka.Topic)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Reservation.DefaultTTL <= 0 {
		errs = append(errs, errors.New("reservation.default_ttl must be positive"))
	}
	if c.Lock.Timeout <= 0 {
		errs = append(errs, errors.New("lock.timeout must be positive"))
	}
	if c.Sweeper.Interval <= 0 {
		errs = append(errs, errors.New("sweeper.interval must be positive"))
	}
	if c.Sweeper.Concurrency <= 0 {
		errs = append(errs, errors.New("sweeper.concurrency must be positive"))
	}

	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis store"))
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres store"))
		}
	case "zookeeper":
		if len(c.ZooKeeper.Servers) == 0 {
			errs = append(errs, errors.New("zookeeper.servers is required for the zookeeper store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}

	switch c.Lock.Backend {
	case "memory":
		if c.Store.Backend != "memory" {
			errs = append(errs, fmt.Errorf("lock.backend memory cannot guard the shared %s store", c.Store.Backend))
		}
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis lock"))
		}
	case "zookeeper":
		if len(c.ZooKeeper.Servers) == 0 {
			errs = append(errs, errors.New("zookeeper.servers is required for the zookeeper lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock.backend %q", c.Lock.Backend))
	}

	switch c.Events.Sink {
	case "none", "log":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required for the kafka event sink"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.topic is required for the kafka event sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events.sink %q", c.Events.Sink))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
