package cache

import (
	"fmt"
	"time"
)

// Cache key tiers assigned by text length. The tier decides whether the
// in-memory tier participates in lookups for that text.
const (
	TierSmall  = "small"
	TierMedium = "medium"
	TierLarge  = "large"
	TierXLarge = "xlarge"
)

// TextSizeTiers holds the character-count boundaries between text tiers.
// Comparisons are strict: a text is in a tier when its length is below the
// tier's upper boundary.
type TextSizeTiers struct {
	Small  int `json:"small" mapstructure:"small"`
	Medium int `json:"medium" mapstructure:"medium"`
	Large  int `json:"large" mapstructure:"large"`
}

// Config configures the AI response cache: connection, TTL policy,
// compression, text tiering, and the in-memory tier capacity.
//
// Use DefaultConfig() to get production defaults, then override individual
// fields. NewAIResponseCache validates the config and rejects invalid values.
type Config struct {
	// RedisURL is the connection URL for the external store
	RedisURL string `json:"redis_url" mapstructure:"redis_url"`
	// DefaultTTL applies to operations without an explicit TTL override
	DefaultTTL time.Duration `json:"default_ttl" mapstructure:"default_ttl"`
	// OperationTTLs overrides the TTL for specific operations
	OperationTTLs map[string]time.Duration `json:"operation_ttls" mapstructure:"operation_ttls"`
	// TextHashThreshold is the text length above which keys use a content hash
	TextHashThreshold int `json:"text_hash_threshold" mapstructure:"text_hash_threshold"`
	// CompressionThreshold is the serialized size in bytes above which payloads are compressed
	CompressionThreshold int `json:"compression_threshold" mapstructure:"compression_threshold"`
	// CompressionLevel is the DEFLATE level, 1 (fastest) to 9 (best)
	CompressionLevel int `json:"compression_level" mapstructure:"compression_level"`
	// TextSizeTiers holds the tier boundaries in characters
	TextSizeTiers TextSizeTiers `json:"text_size_tiers" mapstructure:"text_size_tiers"`
	// MemoryCacheSize caps the in-memory tier entry count
	MemoryCacheSize int `json:"memory_cache_size" mapstructure:"memory_cache_size"`
	// ConnectTimeout bounds the connection attempt including the ping probe
	ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
}

// DefaultConfig returns the cache configuration used in production.
// Per-operation TTLs reflect how quickly each result type goes stale:
// sentiment barely changes for a given text, Q&A answers depend on
// conversational context and expire fastest.
func DefaultConfig() *Config {
	return &Config{
		RedisURL:   "redis://localhost:6379",
		DefaultTTL: time.Hour,
		OperationTTLs: map[string]time.Duration{
			"summarize":  2 * time.Hour,
			"sentiment":  24 * time.Hour,
			"key_points": 2 * time.Hour,
			"questions":  time.Hour,
			"qa":         30 * time.Minute,
		},
		TextHashThreshold:    1000,
		CompressionThreshold: 1000,
		CompressionLevel:     6,
		TextSizeTiers: TextSizeTiers{
			Small:  500,
			Medium: 5000,
			Large:  50000,
		},
		MemoryCacheSize: 100,
		ConnectTimeout:  5 * time.Second,
	}
}

// applyDefaults fills zero-valued fields from DefaultConfig
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.RedisURL == "" {
		c.RedisURL = defaults.RedisURL
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = defaults.DefaultTTL
	}
	if c.OperationTTLs == nil {
		c.OperationTTLs = defaults.OperationTTLs
	}
	if c.TextHashThreshold == 0 {
		c.TextHashThreshold = defaults.TextHashThreshold
	}
	if c.CompressionThreshold == 0 {
		c.CompressionThreshold = defaults.CompressionThreshold
	}
	if c.CompressionLevel == 0 {
		c.CompressionLevel = defaults.CompressionLevel
	}
	if c.TextSizeTiers == (TextSizeTiers{}) {
		c.TextSizeTiers = defaults.TextSizeTiers
	}
	if c.MemoryCacheSize == 0 {
		c.MemoryCacheSize = defaults.MemoryCacheSize
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
}

// Validate rejects configurations the cache cannot operate with
func (c *Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("%w: default TTL must be positive", ErrInvalidConfig)
	}
	for op, ttl := range c.OperationTTLs {
		if ttl <= 0 {
			return fmt.Errorf("%w: TTL for operation %q must be positive", ErrInvalidConfig, op)
		}
	}
	if c.TextHashThreshold <= 0 {
		return fmt.Errorf("%w: text hash threshold must be positive", ErrInvalidConfig)
	}
	if c.CompressionThreshold < 0 {
		return fmt.Errorf("%w: compression threshold must not be negative", ErrInvalidConfig)
	}
	if c.CompressionLevel < 1 || c.CompressionLevel > 9 {
		return fmt.Errorf("%w: compression level must be between 1 and 9", ErrInvalidConfig)
	}
	tiers := c.TextSizeTiers
	if tiers.Small <= 0 || tiers.Medium <= tiers.Small || tiers.Large <= tiers.Medium {
		return fmt.Errorf("%w: text size tiers must be positive and strictly increasing", ErrInvalidConfig)
	}
	if c.MemoryCacheSize <= 0 {
		return fmt.Errorf("%w: memory cache size must be positive", ErrInvalidConfig)
	}
	return nil
}

// operationTTL returns the TTL for one operation, falling back to the default
func (c *Config) operationTTL(operation string) time.Duration {
	if ttl, ok := c.OperationTTLs[operation]; ok {
		return ttl
	}
	return c.DefaultTTL
}
