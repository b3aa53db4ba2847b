package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vendorsync/internal/connectivity"
	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/vendorsync/internal/health"
	"github.com/vladislavdragonenkov/vendorsync/internal/storage/memory"
	"github.com/vladislavdragonenkov/vendorsync/internal/storage/postgres"
	"github.com/vladislavdragonenkov/vendorsync/internal/storage/sqlite"
	"github.com/vladislavdragonenkov/vendorsync/internal/submit/awssqs"
	"github.com/vladislavdragonenkov/vendorsync/internal/submit/kafka"
	"github.com/vladislavdragonenkov/vendorsync/internal/submit/mock"
	"github.com/vladislavdragonenkov/vendorsync/internal/submit/rabbitmq"
	"github.com/vladislavdragonenkov/vendorsync/internal/version"
)

// runtimeDependencies — внешние зависимости менеджера очереди.
type runtimeDependencies struct {
	store     domain.SlotStore
	submitter domain.OrderSubmitter
	conn      domain.ConnectivitySource

	// manual задан только для ручного источника сети.
	manual *connectivity.Manual
	// prober задан только для gRPC-источника; его Run запускает app.Run.
	prober *connectivity.Prober

	storageChecker healthcheck.Checker
	closers        []func() error
}

// close освобождает ресурсы в обратном порядке создания.
func (d *runtimeDependencies) close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}

	if err := initStorage(ctx, cfg, logger, deps); err != nil {
		_ = deps.close()
		return nil, err
	}
	if err := initSubmitter(ctx, cfg, logger, deps); err != nil {
		_ = deps.close()
		return nil, err
	}
	if err := initConnectivity(cfg, logger, deps); err != nil {
		_ = deps.close()
		return nil, err
	}
	return deps, nil
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry, deps *runtimeDependencies) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case StorageDriverMemory:
		deps.store = memory.NewSlotStore()
		logger.Warn("memory storage selected: queue will not survive restarts")
		return nil

	case StorageDriverSQLite:
		path := strings.TrimSpace(cfg.SQLitePath)
		if path == "" {
			return errors.New("sqlite path is required for sqlite storage driver")
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("init sqlite storage: %w", err)
		}
		deps.store = store
		deps.storageChecker = healthcheck.NewSimpleChecker("storage", store.Ping)
		deps.closers = append(deps.closers, store.Close)
		logger.WithField("path", store.Path()).Info("sqlite storage initialized")
		return nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return fmt.Errorf("init postgres storage: %w", err)
		}
		deps.closers = append(deps.closers, store.Close)
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		deps.store = postgres.NewSlotRepository(store)
		deps.storageChecker = healthcheck.NewSimpleChecker("storage", store.Ping)
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("postgres storage initialized")
		return nil

	default:
		return fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

func initSubmitter(ctx context.Context, cfg Config, logger *log.Entry, deps *runtimeDependencies) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.SubmitterDriver))
	switch driver {
	case SubmitterDriverMock:
		deps.submitter = mock.NewSubmitter()
		logger.Warn("mock submitter selected: orders are accepted locally")
		return nil

	case SubmitterDriverKafka:
		brokers := splitList(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return errors.New("kafka brokers are required for kafka submitter")
		}
		producer, err := kafka.NewProducer(brokers, cfg.KafkaClientID)
		if err != nil {
			return fmt.Errorf("init kafka producer: %w", err)
		}
		deps.closers = append(deps.closers, producer.Close)
		deps.submitter = kafka.NewSubmitter(producer, cfg.KafkaTopic)
		logger.WithFields(log.Fields{"brokers": brokers, "topic": cfg.KafkaTopic}).Info("kafka submitter initialized")
		return nil

	case SubmitterDriverRabbitMQ:
		url := strings.TrimSpace(cfg.RabbitURL)
		if url == "" {
			return errors.New("rabbitmq url is required for rabbitmq submitter")
		}
		conn, err := rabbitmq.Dial(url, cfg.RabbitExchange)
		if err != nil {
			return fmt.Errorf("init rabbitmq publisher: %w", err)
		}
		deps.closers = append(deps.closers, conn.Close)
		deps.submitter = rabbitmq.NewSubmitter(conn, cfg.RabbitExchange, cfg.RabbitRoutingKey, version.UserAgent())
		logger.WithField("exchange", cfg.RabbitExchange).Info("rabbitmq submitter initialized")
		return nil

	case SubmitterDriverSQS:
		queueURL := strings.TrimSpace(cfg.SQSQueueURL)
		if queueURL == "" {
			return errors.New("sqs queue url is required for sqs submitter")
		}
		client, err := awssqs.NewClient(ctx, cfg.SQSRegion, cfg.SQSEndpoint)
		if err != nil {
			return fmt.Errorf("init sqs client: %w", err)
		}
		deps.submitter = awssqs.NewSubmitter(client, queueURL)
		logger.WithField("queue_url", queueURL).Info("sqs submitter initialized")
		return nil

	default:
		return fmt.Errorf("unsupported submitter driver: %s", cfg.SubmitterDriver)
	}
}

func initConnectivity(cfg Config, logger *log.Entry, deps *runtimeDependencies) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.ConnectivityDriver))
	switch driver {
	case ConnectivityDriverManual:
		deps.manual = connectivity.NewManual(cfg.InitialOnline)
		deps.conn = deps.manual
		return nil

	case ConnectivityDriverGRPC:
		target := strings.TrimSpace(cfg.ProbeTarget)
		if target == "" {
			return errors.New("probe target is required for grpc connectivity driver")
		}
		prober, err := connectivity.NewProber(target,
			connectivity.WithInterval(cfg.ProbeInterval),
			connectivity.WithTimeout(cfg.ProbeTimeout),
			connectivity.WithFailureThreshold(cfg.ProbeFailureThreshold),
			connectivity.WithService(cfg.ProbeService),
			connectivity.WithProberLogger(logger.WithField("component", "connectivity-prober")),
		)
		if err != nil {
			return fmt.Errorf("init connectivity prober: %w", err)
		}
		deps.closers = append(deps.closers, prober.Close)
		deps.prober = prober
		deps.conn = prober
		logger.WithField("target", target).Info("grpc connectivity prober initialized")
		return nil

	default:
		return fmt.Errorf("unsupported connectivity driver: %s", cfg.ConnectivityDriver)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
