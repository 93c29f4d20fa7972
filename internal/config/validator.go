package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateEngine(cfg.Engine); err != nil {
		errors = append(errors, err)
	}

	if err := validateStreaming(cfg.Streaming); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RPS <= 0 {
		return &ValidationError{
			Field:   "server.rate_limit.rps",
			Message: "rps must be positive when rate limiting is enabled",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	switch cfg.Type {
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unsupported broker type: %s", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one broker address is required",
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "consumer group id is required",
		}
	}

	if cfg.InputTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.input_topic",
			Message: "input topic is required",
		}
	}

	if cfg.BatchSize < 0 {
		return &ValidationError{
			Field:   "broker.kafka.batch_size",
			Message: "batch size must not be negative",
		}
	}

	if cfg.WorkerCount < 0 {
		return &ValidationError{
			Field:   "broker.kafka.worker_count",
			Message: "worker count must not be negative",
		}
	}

	return nil
}

func validateEngine(cfg EngineConfig) error {
	if cfg.RuleCache.TTL < 0 {
		return &ValidationError{
			Field:   "engine.rule_cache.ttl",
			Message: "rule cache ttl must not be negative",
		}
	}

	if cfg.Executor.PlatformRPS < 0 {
		return &ValidationError{
			Field:   "engine.executor.platform_rps",
			Message: "platform rps must not be negative",
		}
	}

	return nil
}

func validateStreaming(cfg StreamingConfig) error {
	if cfg.MaxRestartAttempts < 0 {
		return &ValidationError{
			Field:   "streaming.max_restart_attempts",
			Message: "max restart attempts must not be negative",
		}
	}

	return nil
}
