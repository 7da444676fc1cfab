package config

import "time"

// Messaging definition messaging_service YAML structure
type Messaging struct {
	Port        string        `mapstructure:"port"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`

	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Redis       RedisConfig       `mapstructure:"redis"`
}

// MarketplaceConfig definition upstream marketplace REST API setting
type MarketplaceConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Timeout       int    `mapstructure:"timeout"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}
