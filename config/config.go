package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/preuvely/storematch/pkg/matching"
	"github.com/preuvely/storematch/pkg/normalizers"
	"github.com/preuvely/storematch/pkg/submission"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"storematch-api"`
	Version                       string `env:"APP_VERSION" env-default:"dev"`
	Port                          int    `env:"PORT" env-default:"3004"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Catalog backend: postgres or memory
	CatalogDriver string `env:"CATALOG_DRIVER" env-default:"postgres"`

	// PostgreSQL
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"storematch"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (submission locks)
	RedisEnabled  bool   `env:"REDIS_ENABLED" env-default:"true"`
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka producer
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"true"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"store-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:""`
	OTLPProtocol string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`

	// Matching
	MatchNameThreshold     float64  `env:"MATCH_NAME_THRESHOLD" env-default:"0.85"`
	MatchNameSuffixes      []string `env:"MATCH_NAME_SUFFIXES" env-default:"shop,store,boutique,dz,algeria,algerie"`
	MatchNameSubstitutions []string `env:"MATCH_NAME_SUBSTITUTIONS" env-default:"ou:u,ph:f,ck:k,ee:i,oo:u"`
	TransliterationEnabled bool     `env:"TRANSLITERATION_ENABLED" env-default:"true"`

	// Submission
	SubmissionLockTTL     time.Duration `env:"SUBMISSION_LOCK_TTL" env-default:"10s"`
	SubmissionLockTimeout time.Duration `env:"SUBMISSION_LOCK_TIMEOUT" env-default:"2s"`
}

// Load reads an optional .env file then the process environment
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the tags cannot express
func (c *Config) Validate() error {
	if c.MatchNameThreshold <= 0 || c.MatchNameThreshold > 1 {
		return fmt.Errorf("MATCH_NAME_THRESHOLD must be in (0, 1], got %v", c.MatchNameThreshold)
	}
	switch c.CatalogDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("CATALOG_DRIVER must be postgres or memory, got %q", c.CatalogDriver)
	}
	if _, err := c.substitutions(); err != nil {
		return err
	}
	return nil
}

// DatabaseDSN builds the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DatabaseUserName, c.DatabasePassword),
		Host:     c.DatabaseHost + ":" + c.DatabasePort,
		Path:     c.DatabaseName,
		RawQuery: url.Values{"sslmode": []string{c.DatabaseSSLMode}}.Encode(),
	}
	return dsn.String()
}

// Matching returns the matching engine configuration
func (c *Config) Matching() matching.Config {
	subs, _ := c.substitutions()
	return matching.Config{
		NameThreshold: c.MatchNameThreshold,
		Suffixes:      c.MatchNameSuffixes,
		Substitutions: subs,
	}
}

// Submission returns the submission workflow configuration
func (c *Config) Submission() submission.Config {
	return submission.Config{
		LockTTL:     c.SubmissionLockTTL,
		LockTimeout: c.SubmissionLockTimeout,
	}
}

// substitutions parses "from:to" pairs, keeping their order
func (c *Config) substitutions() ([]normalizers.Substitution, error) {
	subs := make([]normalizers.Substitution, 0, len(c.MatchNameSubstitutions))
	for _, pair := range c.MatchNameSubstitutions {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		from, to, ok := strings.Cut(pair, ":")
		if !ok || from == "" {
			return nil, fmt.Errorf("invalid MATCH_NAME_SUBSTITUTIONS entry %q, want from:to", pair)
		}
		subs = append(subs, normalizers.Substitution{From: strings.ToLower(from), To: strings.ToLower(to)})
	}
	return subs, nil
}
