// Package config 提供配置管理
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config 应用配置
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	API       APIConfig
	Scheduler SchedulerConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string
	Env     string
	Port    int
	Version string
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig API配置
type APIConfig struct {
	Prefix    string
	Timeout   time.Duration
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

// RateLimitConfig 请求频率限制
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool
	Origins []string
}

// SchedulerConfig 排课引擎配置
type SchedulerConfig struct {
	Timeout      time.Duration // 单次生成超时
	SessionOrder string        // labs_first | hours_first
	LockTTL      time.Duration // 范围锁过期时间
	LockPrefix   string        // Redis 锁键前缀
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Format string // json | console
	Output string // stdout | stderr
}

// Load 从 .env 和环境变量加载配置
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("APP_NAME"),
			Env:     v.GetString("APP_ENV"),
			Port:    v.GetInt("APP_PORT"),
			Version: v.GetString("APP_VERSION"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("DB_ENABLED"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Name:            v.GetString("DB_NAME"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			SSLMode:         v.GetString("DB_SSL_MODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			PoolSize: v.GetInt("REDIS_POOL_SIZE"),
		},
		API: APIConfig{
			Prefix:  v.GetString("API_PREFIX"),
			Timeout: v.GetDuration("API_TIMEOUT"),
			CORS: CORSConfig{
				Enabled: v.GetBool("API_CORS_ENABLED"),
				Origins: splitAndTrim(v.GetString("API_CORS_ORIGINS")),
			},
			RateLimit: RateLimitConfig{
				Enabled:  v.GetBool("API_RATE_LIMIT_ENABLED"),
				Requests: v.GetInt("API_RATE_LIMIT_REQUESTS"),
				Window:   v.GetDuration("API_RATE_LIMIT_WINDOW"),
			},
		},
		Scheduler: SchedulerConfig{
			Timeout:      v.GetDuration("SCHEDULER_TIMEOUT"),
			SessionOrder: v.GetString("SCHEDULER_SESSION_ORDER"),
			LockTTL:      v.GetDuration("SCHEDULER_LOCK_TTL"),
			LockPrefix:   v.GetString("SCHEDULER_LOCK_PREFIX"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
	}

	switch cfg.Scheduler.SessionOrder {
	case "labs_first", "hours_first":
	default:
		return nil, fmt.Errorf("SCHEDULER_SESSION_ORDER 取值无效: %q", cfg.Scheduler.SessionOrder)
	}
	if rl := cfg.API.RateLimit; rl.Enabled && (rl.Requests <= 0 || rl.Window <= 0) {
		return nil, fmt.Errorf("API_RATE_LIMIT_REQUESTS 和 API_RATE_LIMIT_WINDOW 必须为正数")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "kebiao")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_PORT", 7012)
	v.SetDefault("APP_VERSION", "dev")

	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "kebiao")
	v.SetDefault("DB_USER", "kebiao")
	v.SetDefault("DB_PASSWORD", "kebiao")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)

	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("API_TIMEOUT", "90s")
	v.SetDefault("API_CORS_ENABLED", true)
	v.SetDefault("API_CORS_ORIGINS", "*")
	v.SetDefault("API_RATE_LIMIT_ENABLED", true)
	v.SetDefault("API_RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("API_RATE_LIMIT_WINDOW", "1m")

	v.SetDefault("SCHEDULER_TIMEOUT", "60s")
	v.SetDefault("SCHEDULER_SESSION_ORDER", "labs_first")
	v.SetDefault("SCHEDULER_LOCK_TTL", "5m")
	v.SetDefault("SCHEDULER_LOCK_PREFIX", "kebiao:lock:")

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == EnvDevelopment
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == EnvTest
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
