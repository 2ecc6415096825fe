package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ErrMissingStore is returned by Validate when a required store identifier is empty.
var ErrMissingStore = errors.New("missing required store identifier")

// ErrInvalidStore is returned by Validate when a store identifier can't be used as a table/key name.
var ErrInvalidStore = errors.New("invalid store identifier")

var storeNameRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ---- Root ----

type Config struct {
	Env        string          `mapstructure:"env"`
	LogLevel   string          `mapstructure:"log_level"`
	Stores     StoresConfig    `mapstructure:"stores"`
	HTTP       HTTPConfig      `mapstructure:"http"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Stream     StreamConfig    `mapstructure:"stream"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	JetStream  JetStreamConfig `mapstructure:"jetstream"`
	Counters   CountersConfig  `mapstructure:"counters"`
}

// ---- Leaf structs ----

// StoresConfig names the tables / key namespaces the side effects are written to.
// Match is the observed source and is optional.
type StoresConfig struct {
	User         string `mapstructure:"user"`
	Job          string `mapstructure:"job"`
	Transaction  string `mapstructure:"transaction"`
	MatchHistory string `mapstructure:"match_history"`
	Match        string `mapstructure:"match"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type StreamConfig struct {
	Driver        string        `mapstructure:"driver"` // kafka | jetstream
	BatchSize     int           `mapstructure:"batch_size"`
	BatchWait     time.Duration `mapstructure:"batch_wait"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	Topic           string   `mapstructure:"topic"`
	GroupID         string   `mapstructure:"group_id"`
	DeadLetterTopic string   `mapstructure:"dead_letter_topic"`
	MinBytes        int      `mapstructure:"min_bytes"`
	MaxBytes        int      `mapstructure:"max_bytes"`
	CommitInterval  int      `mapstructure:"commit_interval_ms"`
}

type JetStreamConfig struct {
	URL               string        `mapstructure:"url"`
	Stream            string        `mapstructure:"stream"`
	Subject           string        `mapstructure:"subject"`
	Durable           string        `mapstructure:"durable"`
	DeadLetterSubject string        `mapstructure:"dead_letter_subject"`
	AckWait           time.Duration `mapstructure:"ack_wait"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

type CountersConfig struct {
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// legacyEnv maps the environment names the stream function was historically deployed with.
var legacyEnv = map[string]string{
	"stores.user":          "USER_TABLE_NAME",
	"stores.job":           "JOB_TABLE_NAME",
	"stores.transaction":   "TRANSACTION_TABLE_NAME",
	"stores.match_history": "MATCH_HISTORY_TABLE_NAME",
	"stores.match":         "MATCH_TABLE_NAME",
	"env":                  "ENV",
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides
// (MATCHSTREAM_* and the legacy *_TABLE_NAME / ENV names).
func Load(path string) (*Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge config %s: %w", path, err)
		}
	}

	// env override (MATCHSTREAM_STORES_USER, ...)
	v.SetEnvPrefix("MATCHSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range legacyEnv {
		if err := v.BindEnv(key, "MATCHSTREAM_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every missing or malformed store identifier at once.
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"user", c.Stores.User},
		{"job", c.Stores.Job},
		{"transaction", c.Stores.Transaction},
		{"match_history", c.Stores.MatchHistory},
	}

	var missing, invalid []string
	for _, r := range required {
		switch {
		case strings.TrimSpace(r.value) == "":
			missing = append(missing, r.name)
		case !storeNameRe.MatchString(r.value):
			invalid = append(invalid, r.name)
		}
	}
	if c.Stores.Match != "" && !storeNameRe.MatchString(c.Stores.Match) {
		invalid = append(invalid, "match")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingStore, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidStore, strings.Join(invalid, ", "))
	}
	return nil
}
