package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Manifest  ManifestConfig  `mapstructure:"manifest"`
	Review    ReviewConfig    `mapstructure:"review"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// JWTConfig 身份服务签发令牌所用的共享密钥
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type ManifestConfig struct {
	Source string    `mapstructure:"source"` // local, oss
	Dir    string    `mapstructure:"dir"`
	OSS    OSSConfig `mapstructure:"oss"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	Prefix          string `mapstructure:"prefix"`
}

type ReviewConfig struct {
	NewAttemptAfter time.Duration `mapstructure:"new_attempt_after"` // 超过该间隔的再次进入视为新的观看轮次
	MaxCASRetries   int           `mapstructure:"max_cas_retries"`
}

type IngestConfig struct {
	MaxBatchSize          int  `mapstructure:"max_batch_size"`
	InsertChunkSize       int  `mapstructure:"insert_chunk_size"`
	RequireViewingAttempt bool `mapstructure:"require_viewing_attempt"`
}

type RateLimitConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	BatchesPerMinute int  `mapstructure:"batches_per_minute"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// AuditConfig 定时会话巡检
type AuditConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Default 返回带默认值的配置（测试与未配置字段使用）
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "debug",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			SQLitePath:   "slide_review.db",
			MaxIdleConns: 10,
			MaxOpenConns: 50,
		},
		Manifest: ManifestConfig{
			Source: "local",
			Dir:    "manifests",
		},
		Review: ReviewConfig{
			NewAttemptAfter: 60 * time.Second,
			MaxCASRetries:   5,
		},
		Ingest: IngestConfig{
			MaxBatchSize:    500,
			InsertChunkSize: 100,
		},
		RateLimit: RateLimitConfig{
			BatchesPerMinute: 120,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "slide-review-server",
		},
		Audit: AuditConfig{
			Interval: time.Hour,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.sqlite_path", d.Database.SQLitePath)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("manifest.source", d.Manifest.Source)
	v.SetDefault("manifest.dir", d.Manifest.Dir)
	v.SetDefault("review.new_attempt_after", d.Review.NewAttemptAfter)
	v.SetDefault("review.max_cas_retries", d.Review.MaxCASRetries)
	v.SetDefault("ingest.max_batch_size", d.Ingest.MaxBatchSize)
	v.SetDefault("ingest.insert_chunk_size", d.Ingest.InsertChunkSize)
	v.SetDefault("ratelimit.batches_per_minute", d.RateLimit.BatchesPerMinute)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("audit.interval", d.Audit.Interval)
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
