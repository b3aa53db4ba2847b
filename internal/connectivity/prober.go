package connectivity

import (
	"context"
	"fmt"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

const (
	defaultProbeInterval    = 5 * time.Second
	defaultProbeTimeout     = 2 * time.Second
	defaultFailureThreshold = 2
)

// ProberOptions задаёт параметры опроса.
type ProberOptions struct {
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold int
	Service          string
	Logger           *log.Entry
}

// ProberOption настраивает Prober.
type ProberOption func(*ProberOptions)

// WithInterval задаёт период опроса.
func WithInterval(d time.Duration) ProberOption {
	return func(o *ProberOptions) { o.Interval = d }
}

// WithTimeout задаёт таймаут одного health-запроса.
func WithTimeout(d time.Duration) ProberOption {
	return func(o *ProberOptions) { o.Timeout = d }
}

// WithFailureThreshold задаёт число неудач подряд до перехода в offline.
func WithFailureThreshold(n int) ProberOption {
	return func(o *ProberOptions) { o.FailureThreshold = n }
}

// WithService задаёт имя сервиса в health-запросе ("" — весь сервер).
func WithService(name string) ProberOption {
	return func(o *ProberOptions) { o.Service = name }
}

// WithProberLogger задаёт logger.
func WithProberLogger(logger *log.Entry) ProberOption {
	return func(o *ProberOptions) { o.Logger = logger }
}

// Prober опрашивает gRPC health сервиса приёма заказов и публикует
// переходы online/offline подписчикам. Стартует в состоянии offline.
type Prober struct {
	*Manual

	client   healthpb.HealthClient
	conn     *grpc.ClientConn
	opts     ProberOptions
	logger   *log.Entry
	failures int
}

// NewProber подключается к target (host:port) без TLS.
func NewProber(target string, options ...ProberOption) (*Prober, error) {
	conn, err := grpc.NewClient(
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpc_prometheus.UnaryClientInterceptor),
	)
	if err != nil {
		return nil, fmt.Errorf("create health client for %s: %w", target, err)
	}

	p := NewProberWithClient(healthpb.NewHealthClient(conn), options...)
	p.conn = conn
	p.logger = p.logger.WithField("target", target)
	return p, nil
}

// NewProberWithClient создаёт Prober поверх готового health-клиента.
func NewProberWithClient(client healthpb.HealthClient, options ...ProberOption) *Prober {
	opts := ProberOptions{
		Interval:         defaultProbeInterval,
		Timeout:          defaultProbeTimeout,
		FailureThreshold: defaultFailureThreshold,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultProbeInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultProbeTimeout
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "connectivity-prober")
	}

	return &Prober{
		Manual: NewManual(false),
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Run опрашивает сервис до отмены ctx. Первый опрос выполняется сразу.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.ProbeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce выполняет один health-запрос и обновляет состояние.
// Возвращает текущее состояние после опроса.
func (p *Prober) ProbeOnce(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	resp, err := p.client.Check(probeCtx, &healthpb.HealthCheckRequest{Service: p.opts.Service})
	if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
		p.failures = 0
		if p.Set(true) {
			p.logger.Info("order service reachable")
		}
		return true
	}

	p.failures++
	if p.failures < p.opts.FailureThreshold {
		return p.IsOnline()
	}

	if p.Set(false) {
		entry := p.logger.WithField("failures", p.failures)
		if err != nil {
			entry = entry.WithError(err)
		} else {
			entry = entry.WithField("status", resp.GetStatus().String())
		}
		entry.Warn("order service unreachable")
	}
	return false
}

// Close закрывает gRPC-соединение, если Prober создавал его сам.
func (p *Prober) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

var _ domain.ConnectivitySource = (*Prober)(nil)
