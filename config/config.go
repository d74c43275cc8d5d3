package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tickbook/domain/orderbook"
	"tickbook/infra/ticks"
)

type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Book struct {
		Index          string `yaml:"index"`
		MinTick        int64  `yaml:"min_tick"`
		MaxTick        int64  `yaml:"max_tick"`
		ExpectedOrders int    `yaml:"expected_orders"`
		// TickSize is the decimal price of one tick, e.g. "0.01".
		TickSize string `yaml:"tick_size"`
	} `yaml:"book"`
	Engine struct {
		QueueDepth int `yaml:"queue_depth"`
		BatchSize  int `yaml:"batch_size"`
		NotifyRing int `yaml:"notify_ring"`
	} `yaml:"engine"`
	GRPC struct {
		Addr string `yaml:"addr"`
	} `yaml:"grpc"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Tape struct {
		Record string `yaml:"record"`
		Replay string `yaml:"replay"`
	} `yaml:"tape"`
	Kafka struct {
		Brokers     []string `yaml:"brokers"`
		OrdersTopic string   `yaml:"orders_topic"`
		GroupID     string   `yaml:"group_id"`
		L1Topic     string   `yaml:"l1_topic"`
		Consume     bool     `yaml:"consume"`
		Publish     bool     `yaml:"publish"`
	} `yaml:"kafka"`
	Outbox struct {
		Dir      string        `yaml:"dir"`
		Interval time.Duration `yaml:"interval"`
		// MaxPending fails readiness once this many updates wait to be
		// published; 0 disables the bound.
		MaxPending int `yaml:"max_pending"`
	} `yaml:"outbox"`
}

func defaultConfig() Config {
	var c Config
	c.Log.Level = "info"
	c.Log.Pretty = false
	c.Book.Index = "rbtree"
	c.Book.MinTick = 0
	c.Book.MaxTick = 1 << 20
	c.Book.ExpectedOrders = 1 << 16
	c.Book.TickSize = "0.01"
	c.Engine.QueueDepth = 4096
	c.Engine.BatchSize = 256
	c.Engine.NotifyRing = 1 << 14
	c.GRPC.Addr = ":50051"
	c.HTTP.Addr = ":9090"
	c.Kafka.Brokers = []string{"localhost:9092"}
	c.Kafka.OrdersTopic = "tickbook.orders"
	c.Kafka.GroupID = "tickbook"
	c.Kafka.L1Topic = "tickbook.l1"
	c.Outbox.Dir = "data/outbox"
	c.Outbox.Interval = 250 * time.Millisecond
	c.Outbox.MaxPending = 100_000
	return c
}

// Load layers the YAML file named by TICKBOOK_CONFIG over the defaults, then
// applies TICKBOOK_* environment overrides and validates the result.
func Load() (Config, error) {
	c := defaultConfig()
	if path := os.Getenv("TICKBOOK_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func applyEnv(c *Config) error {
	if v := os.Getenv("TICKBOOK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TICKBOOK_LOG_PRETTY"); v != "" {
		c.Log.Pretty = truthy(v)
	}
	if v := os.Getenv("TICKBOOK_BOOK_INDEX"); v != "" {
		c.Book.Index = v
	}
	if v := os.Getenv("TICKBOOK_TICK_SIZE"); v != "" {
		c.Book.TickSize = v
	}
	if v := os.Getenv("TICKBOOK_GRPC_ADDR"); v != "" {
		c.GRPC.Addr = v
	}
	if v := os.Getenv("TICKBOOK_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("TICKBOOK_TAPE_RECORD"); v != "" {
		c.Tape.Record = v
	}
	if v := os.Getenv("TICKBOOK_TAPE_REPLAY"); v != "" {
		c.Tape.Replay = v
	}
	if v := os.Getenv("TICKBOOK_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitCSV(v)
	}
	if v := os.Getenv("TICKBOOK_KAFKA_CONSUME"); v != "" {
		c.Kafka.Consume = truthy(v)
	}
	if v := os.Getenv("TICKBOOK_KAFKA_PUBLISH"); v != "" {
		c.Kafka.Publish = truthy(v)
	}
	if v := os.Getenv("TICKBOOK_OUTBOX_DIR"); v != "" {
		c.Outbox.Dir = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"TICKBOOK_EXPECTED_ORDERS", &c.Book.ExpectedOrders},
		{"TICKBOOK_QUEUE_DEPTH", &c.Engine.QueueDepth},
		{"TICKBOOK_BATCH_SIZE", &c.Engine.BatchSize},
		{"TICKBOOK_NOTIFY_RING", &c.Engine.NotifyRing},
		{"TICKBOOK_OUTBOX_MAX_PENDING", &c.Outbox.MaxPending},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", e.key, err)
			}
			*e.dst = n
		}
	}
	for key, dst := range map[string]*int64{
		"TICKBOOK_MIN_TICK": &c.Book.MinTick,
		"TICKBOOK_MAX_TICK": &c.Book.MaxTick,
	} {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("TICKBOOK_OUTBOX_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: TICKBOOK_OUTBOX_INTERVAL: %w", err)
		}
		c.Outbox.Interval = d
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	kind, err := orderbook.ParseIndexKind(c.Book.Index)
	if err != nil {
		errs = append(errs, err)
	}
	if kind == orderbook.IndexFlat {
		if c.Book.MaxTick < c.Book.MinTick {
			errs = append(errs, fmt.Errorf("book: max_tick %d below min_tick %d", c.Book.MaxTick, c.Book.MinTick))
		} else if _, ok := orderbook.FlatWidth(c.Book.MinTick, c.Book.MaxTick); !ok {
			errs = append(errs, fmt.Errorf("book: flat tick range %d..%d too wide", c.Book.MinTick, c.Book.MaxTick))
		}
	}
	if c.Engine.QueueDepth <= 0 {
		errs = append(errs, errors.New("engine: queue_depth must be positive"))
	}
	if c.Engine.BatchSize <= 0 {
		errs = append(errs, errors.New("engine: batch_size must be positive"))
	}
	if n := c.Engine.NotifyRing; n <= 0 || n&(n-1) != 0 {
		errs = append(errs, fmt.Errorf("engine: notify_ring %d must be a power of two", n))
	}
	if (c.Kafka.Consume || c.Kafka.Publish) && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka: brokers required"))
	}
	if c.Kafka.Publish && c.Outbox.Interval <= 0 {
		errs = append(errs, errors.New("outbox: interval must be positive"))
	}
	if c.Outbox.MaxPending < 0 {
		errs = append(errs, errors.New("outbox: max_pending must not be negative"))
	}
	if err := validTickSize(c.Book.TickSize); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IndexKind returns the parsed book.index; call after Validate.
func (c Config) IndexKind() orderbook.IndexKind {
	k, _ := orderbook.ParseIndexKind(c.Book.Index)
	return k
}

// BookConfig maps the book section onto orderbook.Config.
func (c Config) BookConfig() orderbook.Config {
	return orderbook.Config{
		Index:          c.IndexKind(),
		MinTick:        c.Book.MinTick,
		MaxTick:        c.Book.MaxTick,
		ExpectedOrders: c.Book.ExpectedOrders,
	}
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validTickSize(s string) error {
	if _, err := ticks.Parse(s); err != nil {
		return fmt.Errorf("book: tick_size: %w", err)
	}
	return nil
}

// Ticks returns the parsed book.tick_size; call after Validate.
func (c Config) Ticks() ticks.Scale {
	return ticks.MustParse(c.Book.TickSize)
}
