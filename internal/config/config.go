package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hayan9104/Shopify-Demo1/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config holds process-level settings. Everything comes from environment
// variables with local-dev defaults; the gift table lives in a YAML file.
type Config struct {
	HTTPPort        string
	StorefrontURL   string
	RedisAddr       string
	RedisPassword   string
	MongoURI        string
	MongoDBName     string
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaGroupID    string
	GiftTablePath   string
	DebounceDelay   time.Duration
	SettleDelay     time.Duration
	ResyncInterval  time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func Load() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8090"),
		StorefrontURL:   getEnv("STOREFRONT_URL", "http://localhost:9292"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "giftagent"),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "storefront-cart-events"),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "gift-agent"),
		GiftTablePath:   getEnv("GIFT_TABLE_PATH", "gifts.yaml"),
		DebounceDelay:   getDuration("DEBOUNCE_DELAY", 300*time.Millisecond),
		SettleDelay:     getDuration("SETTLE_DELAY", 500*time.Millisecond),
		ResyncInterval:  getDuration("RESYNC_INTERVAL", 5*time.Minute),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// GiftTable is the static configuration mapping gift keys to variants and
// thresholds, plus the upsell list and the theme sections to re-render.
type GiftTable struct {
	Gifts       []domain.Gift       `yaml:"gifts"`
	Suggestions []domain.Suggestion `yaml:"suggestions"`
	Sections    []string            `yaml:"sections"`
}

func LoadGiftTable(path string) (*GiftTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gift table: %w", err)
	}
	var table GiftTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse gift table: %w", err)
	}
	if err := table.validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

func (t *GiftTable) validate() error {
	seenVariants := make(map[int64]string, len(t.Gifts))
	seenKeys := make(map[string]struct{}, len(t.Gifts))
	seenThresholds := make(map[int64]string, len(t.Gifts))
	for _, g := range t.Gifts {
		if g.Key == "" {
			return fmt.Errorf("gift with variant %d has no key", g.VariantID)
		}
		if g.VariantID <= 0 {
			return fmt.Errorf("gift %q has no variant id configured", g.Key)
		}
		if g.Threshold <= 0 {
			return fmt.Errorf("gift %q has no threshold configured", g.Key)
		}
		if _, dup := seenKeys[g.Key]; dup {
			return fmt.Errorf("gift key %q is configured twice", g.Key)
		}
		if other, dup := seenVariants[g.VariantID]; dup {
			return fmt.Errorf("gifts %q and %q share variant %d", other, g.Key, g.VariantID)
		}
		// Equal thresholds would give one milestone a zero-width band.
		if other, dup := seenThresholds[g.Threshold]; dup {
			return fmt.Errorf("gifts %q and %q share threshold %d", other, g.Key, g.Threshold)
		}
		seenKeys[g.Key] = struct{}{}
		seenVariants[g.VariantID] = g.Key
		seenThresholds[g.Threshold] = g.Key
	}
	for _, s := range t.Suggestions {
		if s.VariantID <= 0 {
			return fmt.Errorf("suggestion has no variant id configured")
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
