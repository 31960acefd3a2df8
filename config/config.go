package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	LinkedIn  LinkedInConfig  `mapstructure:"linkedin"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit" validate:"gte=0"` // 每秒请求数，0 表示不限流
	RateBurst    int           `mapstructure:"rate_burst" validate:"gte=0"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN          string `mapstructure:"dsn" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// RedisConfig Redis 配置（用于发布锁与资料缓存）
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 会话令牌配置
type JWTConfig struct {
	Secret string        `mapstructure:"secret" validate:"required,min=16"`
	Expire time.Duration `mapstructure:"expire" validate:"gt=0"`
}

// LinkedInConfig LinkedIn 发布通道配置
type LinkedInConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"required,url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
	// AccessToken 可选：无人登录时供定时发布使用的静态令牌
	AccessToken string `mapstructure:"access_token"`
}

// OpenAIConfig 内容生成配置
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model" validate:"required"`
}

// SchedulerConfig 定时发布配置
type SchedulerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
	MaxFailures int           `mapstructure:"max_failures" validate:"gte=0"` // 0 表示不限制
	LockTTL     time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
	// CycleTimeout 单轮整体时限，0 表示不限制
	CycleTimeout time.Duration `mapstructure:"cycle_timeout" validate:"gte=0"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// SentryConfig 错误上报配置，DSN 为空时关闭
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string `mapstructure:"service_name"`
}

// Load 从 config.yaml 与 APP_ 前缀的环境变量加载配置
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置字段
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "posts.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "change-me-please-32-bytes-secret")
	v.SetDefault("jwt.expire", 24*time.Hour)

	v.SetDefault("linkedin.base_url", "https://api.linkedin.com")
	v.SetDefault("linkedin.timeout", 30*time.Second)
	v.SetDefault("linkedin.profile_ttl", 10*time.Minute)
	v.SetDefault("linkedin.access_token", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("scheduler.max_failures", 0)
	v.SetDefault("scheduler.lock_ttl", 2*time.Minute)
	v.SetDefault("scheduler.cycle_timeout", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "post-scheduler")
}
