package app

import "time"

// Драйверы локального хранилища очереди.
const (
	StorageDriverMemory   = "memory"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)

// Драйверы отправки заказов в сервис приёма.
const (
	SubmitterDriverMock     = "mock"
	SubmitterDriverKafka    = "kafka"
	SubmitterDriverRabbitMQ = "rabbitmq"
	SubmitterDriverSQS      = "sqs"
)

// Источники состояния сети.
const (
	ConnectivityDriverManual = "manual"
	ConnectivityDriverGRPC   = "grpc"
)

// Config описывает настройки запуска агента синхронизации.
// Структура сравнима через ==, поэтому списки хранятся строками через запятую.
type Config struct {
	HTTPAddr       string
	MetricsAddr    string
	AllowedOrigins string

	StorageDriver       string
	SQLitePath          string
	PostgresDSN         string
	PostgresAutoMigrate bool

	SubmitterDriver  string
	KafkaBrokers     string
	KafkaTopic       string
	KafkaClientID    string
	RabbitURL        string
	RabbitExchange   string
	RabbitRoutingKey string
	SQSQueueURL      string
	SQSRegion        string
	SQSEndpoint      string

	ConnectivityDriver    string
	InitialOnline         bool
	ProbeTarget           string
	ProbeService          string
	ProbeInterval         time.Duration
	ProbeTimeout          time.Duration
	ProbeFailureThreshold int

	GracePeriod     time.Duration
	SubmitTimeout   time.Duration
	PersistTimeout  time.Duration
	QueueWarnSize   int
	SyncOnEnqueue   bool
	FailedRetention time.Duration
	RetentionPeriod time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для запуска на устройстве продавца:
// SQLite-файл, mock-отправка и ручной индикатор сети.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:       ":8080",
		MetricsAddr:    ":9090",
		AllowedOrigins: "*",

		StorageDriver:       StorageDriverSQLite,
		SQLitePath:          "data/vendor-sync.db",
		PostgresAutoMigrate: true,

		SubmitterDriver:  SubmitterDriverMock,
		KafkaTopic:       "vendor.orders.offline",
		KafkaClientID:    "vendor-sync",
		RabbitExchange:   "vendor.orders",
		RabbitRoutingKey: "order.offline",

		ConnectivityDriver:    ConnectivityDriverManual,
		InitialOnline:         true,
		ProbeInterval:         5 * time.Second,
		ProbeTimeout:          2 * time.Second,
		ProbeFailureThreshold: 2,

		GracePeriod:     5 * time.Second,
		SubmitTimeout:   15 * time.Second,
		PersistTimeout:  3 * time.Second,
		QueueWarnSize:   100,
		SyncOnEnqueue:   true,
		RetentionPeriod: time.Hour,
		ShutdownTimeout: 5 * time.Second,
	}
}
