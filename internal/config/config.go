package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Business  BusinessConfig  `mapstructure:"business"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	NodeID          int64         `mapstructure:"node_id"`
}

// DatabaseConfig driver: mysql | postgres | memory
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	MarkerTTL time.Duration `mapstructure:"marker_ttl"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	OrderPaid          string `mapstructure:"order_paid"`
	OrderStatus        string `mapstructure:"order_status"`
	ReferralCommission string `mapstructure:"referral_commission"`
}

type GatewayConfig struct {
	ServerKey string        `mapstructure:"server_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Timezone  string        `mapstructure:"timezone"`
}

type BusinessConfig struct {
	OverCreditTolerance string        `mapstructure:"over_credit_tolerance"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	LockRetryInterval   time.Duration `mapstructure:"lock_retry_interval"`
	LockMaxRetries      int           `mapstructure:"lock_max_retries"`
	MaxRetryCount       int           `mapstructure:"max_retry_count"`
	RelayInterval       time.Duration `mapstructure:"relay_interval"`
	RelayBatchSize      int           `mapstructure:"relay_batch_size"`
	DefaultReferrerRate string        `mapstructure:"default_referrer_rate"`
	ReferralCodePrefix  string        `mapstructure:"referral_code_prefix"`
}

// Tolerance 超额入账容忍度，配置非法时按 0 处理
func (b BusinessConfig) Tolerance() decimal.Decimal {
	d, err := decimal.NewFromString(b.OverCreditTolerance)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func (b BusinessConfig) ReferrerRate() decimal.Decimal {
	d, err := decimal.NewFromString(b.DefaultReferrerRate)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

const envPrefix = "STOREFRONT"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.node_id", 1)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "storefront")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.marker_ttl", 72*time.Hour)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.order_paid", "order.paid")
	v.SetDefault("kafka.topic.order_status", "order.status")
	v.SetDefault("kafka.topic.referral_commission", "referral.commission")

	v.SetDefault("gateway.server_key", "")
	v.SetDefault("gateway.base_url", "https://api.sandbox.midtrans.com")
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("gateway.timezone", "Asia/Jakarta")

	v.SetDefault("business.over_credit_tolerance", "0")
	v.SetDefault("business.lock_ttl", 30*time.Second)
	v.SetDefault("business.lock_retry_interval", 50*time.Millisecond)
	v.SetDefault("business.lock_max_retries", 100)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.relay_interval", 100*time.Millisecond)
	v.SetDefault("business.relay_batch_size", 100)
	v.SetDefault("business.default_referrer_rate", "2.5")
	v.SetDefault("business.referral_code_prefix", "REF")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("log.level", "info")

	v.SetDefault("rate_limit.rps", 50)
	v.SetDefault("rate_limit.burst", 100)
}

// LoadConfig 加载配置：默认值 < 配置文件 < 环境变量（STOREFRONT_ 前缀）。
// 工作目录下的 .env 会先被载入环境变量；配置文件不存在时只用默认值和环境变量。
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return cfg, nil
}
