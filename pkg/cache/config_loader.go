package cache

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/text-mesh/text-mesh/pkg/cache/monitoring"
)

// ConfigFromViper builds a cache Config from viper settings under the
// "cache.ai" key. Unset keys keep their defaults, so a minimal config file
// only has to name what it changes:
//
//	cache:
//	  ai:
//	    redis_url: redis://cache.internal:6379
//	    default_ttl: 2h
//	    operation_ttls:
//	      sentiment: 48h
//	    compression_level: 9
func ConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if v.IsSet("cache.ai.redis_url") {
		cfg.RedisURL = v.GetString("cache.ai.redis_url")
	}
	if v.IsSet("cache.ai.default_ttl") {
		cfg.DefaultTTL = v.GetDuration("cache.ai.default_ttl")
	}
	if v.IsSet("cache.ai.operation_ttls") {
		ttls := make(map[string]time.Duration)
		for op, raw := range v.GetStringMapString("cache.ai.operation_ttls") {
			ttl, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: operation TTL %q for %q: %v", ErrInvalidConfig, raw, op, err)
			}
			ttls[op] = ttl
		}
		cfg.OperationTTLs = ttls
	}
	if v.IsSet("cache.ai.text_hash_threshold") {
		cfg.TextHashThreshold = v.GetInt("cache.ai.text_hash_threshold")
	}
	if v.IsSet("cache.ai.compression_threshold") {
		cfg.CompressionThreshold = v.GetInt("cache.ai.compression_threshold")
	}
	if v.IsSet("cache.ai.compression_level") {
		cfg.CompressionLevel = v.GetInt("cache.ai.compression_level")
	}
	if v.IsSet("cache.ai.text_size_tiers") {
		if err := v.UnmarshalKey("cache.ai.text_size_tiers", &cfg.TextSizeTiers); err != nil {
			return nil, fmt.Errorf("%w: text size tiers: %v", ErrInvalidConfig, err)
		}
	}
	if v.IsSet("cache.ai.memory_cache_size") {
		cfg.MemoryCacheSize = v.GetInt("cache.ai.memory_cache_size")
	}
	if v.IsSet("cache.ai.connect_timeout") {
		cfg.ConnectTimeout = v.GetDuration("cache.ai.connect_timeout")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MonitorConfigFromViper builds a monitoring config from viper settings
// under the "cache.ai.monitoring" key, using the monitoring defaults for
// unset keys.
func MonitorConfigFromViper(v *viper.Viper) *monitoring.Config {
	cfg := monitoring.DefaultConfig()

	if v.IsSet("cache.ai.monitoring.retention_period") {
		cfg.RetentionPeriod = v.GetDuration("cache.ai.monitoring.retention_period")
	}
	if v.IsSet("cache.ai.monitoring.max_measurements") {
		cfg.MaxMeasurements = v.GetInt("cache.ai.monitoring.max_measurements")
	}
	if v.IsSet("cache.ai.monitoring.key_generation_threshold") {
		cfg.KeyGenerationThreshold = v.GetDuration("cache.ai.monitoring.key_generation_threshold")
	}
	if v.IsSet("cache.ai.monitoring.cache_operation_threshold") {
		cfg.CacheOperationThreshold = v.GetDuration("cache.ai.monitoring.cache_operation_threshold")
	}
	if v.IsSet("cache.ai.monitoring.memory_warning_threshold_bytes") {
		cfg.MemoryWarningThresholdBytes = v.GetInt64("cache.ai.monitoring.memory_warning_threshold_bytes")
	}
	if v.IsSet("cache.ai.monitoring.memory_critical_threshold_bytes") {
		cfg.MemoryCriticalThresholdBytes = v.GetInt64("cache.ai.monitoring.memory_critical_threshold_bytes")
	}
	if v.IsSet("cache.ai.monitoring.invalidation_rate_warning_per_hour") {
		cfg.InvalidationRateWarningPerHour = v.GetInt("cache.ai.monitoring.invalidation_rate_warning_per_hour")
	}
	if v.IsSet("cache.ai.monitoring.invalidation_rate_critical_per_hour") {
		cfg.InvalidationRateCriticalPerHour = v.GetInt("cache.ai.monitoring.invalidation_rate_critical_per_hour")
	}
	return cfg
}
