package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Engine         EngineConfig
	Platform       PlatformConfig
	Confidence     ConfidenceConfig
	Streaming      StreamingConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
	RateLimit           RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers             []string      `mapstructure:"brokers"`
	GroupID             string        `mapstructure:"group_id"`
	InputTopic          string        `mapstructure:"input_topic"`
	ExecutionsLogTopic  string        `mapstructure:"executions_log_topic"`
	ProcessingLogTopic  string        `mapstructure:"processing_log_topic"`
	AlertsTopic         string        `mapstructure:"alerts_topic"`
	RuleUpdatesTopic    string        `mapstructure:"rule_updates_topic"`
	BatchSize           int           `mapstructure:"batch_size"`
	BatchWait           time.Duration `mapstructure:"batch_wait"`
	WorkerCount         int           `mapstructure:"worker_count"`
	Retry               RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig covers rule caching, quota accounting and action pacing.
type EngineConfig struct {
	RuleCache RuleCacheConfig `mapstructure:"rule_cache"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
}

type RuleCacheConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	NegativeTTL time.Duration `mapstructure:"negative_ttl"`
}

type QuotaConfig struct {
	KeyTTL time.Duration `mapstructure:"key_ttl"`
}

type ExecutorConfig struct {
	PlatformRPS   float64       `mapstructure:"platform_rps"`
	PlatformBurst int           `mapstructure:"platform_burst"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
}

type PlatformConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIToken       string        `mapstructure:"api_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type ConfidenceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type StreamingConfig struct {
	HealthCheckInterval  time.Duration `mapstructure:"health_check_interval"`
	AutoRestartOnFailure bool          `mapstructure:"auto_restart_on_failure"`
	MaxRestartAttempts   int           `mapstructure:"max_restart_attempts"`
	RestartBackoff       time.Duration `mapstructure:"restart_backoff"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
