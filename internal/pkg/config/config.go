// internal/pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是服务的全部静态配置。
// 来源优先级: 环境变量 > YAML 文件 > 默认值。
type Config struct {
	App        AppConfig        `yaml:"app"`
	MySQL      MySQLConfig      `yaml:"mysql"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Jaeger     JaegerConfig     `yaml:"jaeger"`
	Payment    PaymentConfig    `yaml:"payment"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Pretty   bool   `yaml:"pretty_log"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type PaymentConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ResilienceConfig 控制数据库与支付网关调用的重试和熔断参数。
type ResilienceConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	BaseDelay        time.Duration `yaml:"base_delay"`
	MaxDelay         time.Duration `yaml:"max_delay"`
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// Default 返回适用于本地 docker-compose 环境的默认配置。
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "order-service",
			Port:     8084,
			LogLevel: "info",
		},
		MySQL: MySQLConfig{
			DSN: "root:root@tcp(localhost:3306)/bazaar?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "order-events",
			GroupID: "notification-worker",
		},
		Jaeger:  JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
		Payment: PaymentConfig{BaseURL: "http://localhost:8090", Timeout: 5 * time.Second},
		Resilience: ResilienceConfig{
			MaxAttempts:      3,
			BaseDelay:        100 * time.Millisecond,
			MaxDelay:         10 * time.Second,
			FailureThreshold: 5,
			ResetTimeout:     60 * time.Second,
		},
	}
}

// Load 读取配置文件并套用环境变量覆盖。path 为空时只使用默认值和环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.MySQL.DSN = getEnv("BAZAAR_MYSQL_DSN", cfg.MySQL.DSN)
	cfg.Redis.Addr = getEnv("BAZAAR_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("BAZAAR_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Jaeger.Endpoint = getEnv("BAZAAR_JAEGER_ENDPOINT", cfg.Jaeger.Endpoint)
	cfg.Payment.BaseURL = getEnv("BAZAAR_PAYMENT_URL", cfg.Payment.BaseURL)
	cfg.App.LogLevel = getEnv("BAZAAR_LOG_LEVEL", cfg.App.LogLevel)

	if v, ok := os.LookupEnv("BAZAAR_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = port
		}
	}
	if v, ok := os.LookupEnv("BAZAAR_KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = []string{v}
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
