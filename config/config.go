package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Playback PlaybackConfig `mapstructure:"playback"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	Env          string   `mapstructure:"env"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type ChatConfig struct {
	RateLimitMax    int           `mapstructure:"rate_limit_max"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	MaxContentLen   int           `mapstructure:"max_content_len"`
}

type PlaybackConfig struct {
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// Load reads the config file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("LISTENINGROOM")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.env", "development")
	viper.SetDefault("mysql.max_open_conns", 100)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("redis.pool_size", 50)
	viper.SetDefault("redis.timeout", "3s")
	viper.SetDefault("kafka.topic", "listening-room-events")
	viper.SetDefault("jwt.ttl", "24h")
	viper.SetDefault("chat.rate_limit_max", 10)
	viper.SetDefault("chat.rate_limit_window", "60s")
	viper.SetDefault("chat.max_content_len", 1000)
	viper.SetDefault("playback.lock_ttl", "5s")
}
