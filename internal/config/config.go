package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	Log       LogConfig       `mapstructure:"log"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
	// 按学员限流，0 表示关闭
	LearnerMaxRequests int `mapstructure:"learner_max_requests"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	Path      string // sqlite 文件路径
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Path string `mapstructure:"path"`
}

// AnalyticsConfig 学习进度与分析引擎的阈值参数
type AnalyticsConfig struct {
	CompletionThreshold    float64 `mapstructure:"completion_threshold"`
	ActiveWindowDays       int     `mapstructure:"active_window_days"`
	StreakLookbackDays     int     `mapstructure:"streak_lookback_days"`
	DropoffThreshold       float64 `mapstructure:"dropoff_threshold"`
	DropoffLimit           int     `mapstructure:"dropoff_limit"`
	DropoffBucketSeconds   int     `mapstructure:"dropoff_bucket_seconds"`
	DropoffMinLearners     int     `mapstructure:"dropoff_min_learners"`
	HotspotBucketSeconds   int     `mapstructure:"hotspot_bucket_seconds"`
	HotspotMinInteractions int     `mapstructure:"hotspot_min_interactions"`
	HotspotLimit           int     `mapstructure:"hotspot_limit"`
	CacheTTLSeconds        int     `mapstructure:"cache_ttl_seconds"`
	Timezone               string  `mapstructure:"timezone"`
}

// CacheTTL 指标缓存有效期，0 表示不缓存
func (a AnalyticsConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLSeconds) * time.Second
}

// Location 解析用于划分自然日的时区，解析失败时退回本地时区
func (a AnalyticsConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DefaultAnalytics 返回与线上行为一致的默认阈值
func DefaultAnalytics() AnalyticsConfig {
	return AnalyticsConfig{
		CompletionThreshold:    90,
		ActiveWindowDays:       7,
		StreakLookbackDays:     30,
		DropoffThreshold:       20,
		DropoffLimit:           5,
		DropoffBucketSeconds:   10,
		DropoffMinLearners:     3,
		HotspotBucketSeconds:   30,
		HotspotMinInteractions: 5,
		HotspotLimit:           10,
		CacheTTLSeconds:        60,
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultAnalytics()
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("log.path", "logs/app.log")
	v.SetDefault("rate_limit.max_requests", 1000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("rate_limit.learner_max_requests", 600)
	v.SetDefault("analytics.completion_threshold", d.CompletionThreshold)
	v.SetDefault("analytics.active_window_days", d.ActiveWindowDays)
	v.SetDefault("analytics.streak_lookback_days", d.StreakLookbackDays)
	v.SetDefault("analytics.dropoff_threshold", d.DropoffThreshold)
	v.SetDefault("analytics.dropoff_limit", d.DropoffLimit)
	v.SetDefault("analytics.dropoff_bucket_seconds", d.DropoffBucketSeconds)
	v.SetDefault("analytics.dropoff_min_learners", d.DropoffMinLearners)
	v.SetDefault("analytics.hotspot_bucket_seconds", d.HotspotBucketSeconds)
	v.SetDefault("analytics.hotspot_min_interactions", d.HotspotMinInteractions)
	v.SetDefault("analytics.hotspot_limit", d.HotspotLimit)
	v.SetDefault("analytics.cache_ttl_seconds", d.CacheTTLSeconds)
}

// LoadConfig 从 path 目录读取 config.yaml，并叠加环境变量
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("COURSE_TRACK")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "SERVER_PORT")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}
	if dir := filepath.Dir(cfg.Log.Path); dir != "" {
		os.MkdirAll(dir, 0755)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}

	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	a := c.Analytics
	if a.CompletionThreshold <= 0 || a.CompletionThreshold > 100 {
		return fmt.Errorf("analytics.completion_threshold must be in (0, 100], got %v", a.CompletionThreshold)
	}
	if a.DropoffBucketSeconds <= 0 || a.HotspotBucketSeconds <= 0 {
		return fmt.Errorf("analytics bucket sizes must be positive")
	}
	if a.Timezone != "" {
		if _, err := time.LoadLocation(a.Timezone); err != nil {
			return fmt.Errorf("analytics.timezone: %w", err)
		}
	}
	return nil
}
