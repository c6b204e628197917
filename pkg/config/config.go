package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s" validate:"gt=0"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Upstream struct {
		URL              string        `yaml:"url" default:"wss://stream.binance.com:9443/ws/btcusdt@trade" validate:"required,url"`
		Subscribe        []string      `yaml:"subscribe"` // raw text frames written after the handshake
		HandshakeTimeout time.Duration `yaml:"handshake_timeout" default:"10s"`
		PingInterval     time.Duration `yaml:"ping_interval" default:"30s"`
		ReadLimit        int64         `yaml:"read_limit" default:"1048576" validate:"gt=0"`
		FrameBuffer      int           `yaml:"frame_buffer" default:"1024" validate:"gte=1"`
	} `yaml:"upstream"`
	Decoder struct {
		SymbolKey     string `yaml:"symbol_key" default:"s" validate:"required"`
		PriceKey      string `yaml:"price_key" default:"p" validate:"required"`
		TimeKey       string `yaml:"time_key" default:"E" validate:"required"`
		FallbackTime  string `yaml:"fallback_time_key" default:"T"`
		MaxFrameBytes int    `yaml:"max_frame_bytes" default:"65536" validate:"gt=0"`
	} `yaml:"decoder"`
	Relay struct {
		Topic             string        `yaml:"topic" default:"market" validate:"required,alphanum"`
		SubscriberBuffer  int           `yaml:"subscriber_buffer" default:"256" validate:"gte=1,lte=65536"`
		BackoffInitial    time.Duration `yaml:"backoff_initial" default:"500ms" validate:"gt=0"`
		BackoffMax        time.Duration `yaml:"backoff_max" default:"30s" validate:"gtefield=BackoffInitial"`
		BackoffMultiplier float64       `yaml:"backoff_multiplier" default:"2" validate:"gte=1"`
	} `yaml:"relay"`
	Downstream struct {
		WriteTimeout   time.Duration `yaml:"write_timeout" default:"10s"`
		PongWait       time.Duration `yaml:"pong_wait" default:"60s"`
		PingPeriod     time.Duration `yaml:"ping_period" default:"54s"`
		ConnectBurst   float64       `yaml:"connect_burst" default:"10"`
		ConnectPerSec  float64       `yaml:"connect_per_sec" default:"1"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"downstream"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
		Topic        string   `yaml:"topic" default:"market.events"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel" default:"market"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Default returns a config with every default applied and no file read.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, then YAML, then validation.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("UPSTREAM_URL"); v != "" {
		c.Upstream.URL = v
	}
	if v := getenv("RELAY_TOPIC"); v != "" {
		c.Relay.Topic = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Downstream.PingPeriod >= c.Downstream.PongWait {
		return fmt.Errorf("downstream.ping_period must be shorter than downstream.pong_wait")
	}
	return nil
}
