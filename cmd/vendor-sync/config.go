package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/vendorsync/internal/app"
)

const (
	envLogLevel = "VENDOR_SYNC_LOG_LEVEL"

	envHTTPAddr       = "VENDOR_SYNC_HTTP_ADDR"
	envMetricsAddr    = "VENDOR_SYNC_METRICS_ADDR"
	envAllowedOrigins = "VENDOR_SYNC_ALLOWED_ORIGINS"

	envStorageDriver       = "VENDOR_SYNC_STORAGE_DRIVER"
	envSQLitePath          = "VENDOR_SYNC_SQLITE_PATH"
	envPostgresDSN         = "VENDOR_SYNC_POSTGRES_DSN"
	envPostgresAutoMigrate = "VENDOR_SYNC_POSTGRES_AUTO_MIGRATE"

	envSubmitterDriver  = "VENDOR_SYNC_SUBMITTER"
	envKafkaBrokers     = "VENDOR_SYNC_KAFKA_BROKERS"
	envKafkaTopic       = "VENDOR_SYNC_KAFKA_TOPIC"
	envRabbitURL        = "VENDOR_SYNC_RABBITMQ_URL"
	envRabbitExchange   = "VENDOR_SYNC_RABBITMQ_EXCHANGE"
	envRabbitRoutingKey = "VENDOR_SYNC_RABBITMQ_ROUTING_KEY"
	envSQSQueueURL      = "VENDOR_SYNC_SQS_QUEUE_URL"
	envSQSRegion        = "VENDOR_SYNC_SQS_REGION"
	envSQSEndpoint      = "VENDOR_SYNC_SQS_ENDPOINT"

	envConnectivityDriver    = "VENDOR_SYNC_CONNECTIVITY"
	envInitialOnline         = "VENDOR_SYNC_INITIAL_ONLINE"
	envProbeTarget           = "VENDOR_SYNC_PROBE_TARGET"
	envProbeService          = "VENDOR_SYNC_PROBE_SERVICE"
	envProbeInterval         = "VENDOR_SYNC_PROBE_INTERVAL"
	envProbeTimeout          = "VENDOR_SYNC_PROBE_TIMEOUT"
	envProbeFailureThreshold = "VENDOR_SYNC_PROBE_FAILURE_THRESHOLD"

	envGracePeriod     = "VENDOR_SYNC_GRACE_PERIOD"
	envSubmitTimeout   = "VENDOR_SYNC_SUBMIT_TIMEOUT"
	envPersistTimeout  = "VENDOR_SYNC_PERSIST_TIMEOUT"
	envQueueWarnSize   = "VENDOR_SYNC_QUEUE_WARN_SIZE"
	envSyncOnEnqueue   = "VENDOR_SYNC_SYNC_ON_ENQUEUE"
	envFailedRetention = "VENDOR_SYNC_FAILED_RETENTION"
	envRetentionPeriod = "VENDOR_SYNC_RETENTION_INTERVAL"
)

type envLookup func(key string) (string, bool)

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не прерывают запуск: остаётся значение по умолчанию,
// а в warnings попадает описание проблемы.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	lower := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.ToLower(strings.TrimSpace(v))
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v; using default %t", key, v, err, *dst))
			return
		}
		*dst = parsed
	}
	integer := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v; using default %d", key, v, err, *dst))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v; using default %s", key, v, err, *dst))
			return
		}
		*dst = parsed
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envAllowedOrigins, &cfg.AllowedOrigins)

	lower(envStorageDriver, &cfg.StorageDriver)
	str(envSQLitePath, &cfg.SQLitePath)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	lower(envSubmitterDriver, &cfg.SubmitterDriver)
	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaTopic, &cfg.KafkaTopic)
	str(envRabbitURL, &cfg.RabbitURL)
	str(envRabbitExchange, &cfg.RabbitExchange)
	str(envRabbitRoutingKey, &cfg.RabbitRoutingKey)
	str(envSQSQueueURL, &cfg.SQSQueueURL)
	str(envSQSRegion, &cfg.SQSRegion)
	str(envSQSEndpoint, &cfg.SQSEndpoint)

	lower(envConnectivityDriver, &cfg.ConnectivityDriver)
	boolean(envInitialOnline, &cfg.InitialOnline)
	str(envProbeTarget, &cfg.ProbeTarget)
	str(envProbeService, &cfg.ProbeService)
	duration(envProbeInterval, &cfg.ProbeInterval, positiveDuration, "must be > 0")
	duration(envProbeTimeout, &cfg.ProbeTimeout, positiveDuration, "must be > 0")
	integer(envProbeFailureThreshold, &cfg.ProbeFailureThreshold, positive, "must be > 0")

	duration(envGracePeriod, &cfg.GracePeriod, nonNegativeDuration, "must be >= 0")
	duration(envSubmitTimeout, &cfg.SubmitTimeout, positiveDuration, "must be > 0")
	duration(envPersistTimeout, &cfg.PersistTimeout, positiveDuration, "must be > 0")
	integer(envQueueWarnSize, &cfg.QueueWarnSize, nonNegative, "must be >= 0")
	boolean(envSyncOnEnqueue, &cfg.SyncOnEnqueue)
	duration(envFailedRetention, &cfg.FailedRetention, nonNegativeDuration, "must be >= 0")
	duration(envRetentionPeriod, &cfg.RetentionPeriod, positiveDuration, "must be > 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean")
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("%s", rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("not a duration")
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("%s", rule)
	}
	return value, nil
}
