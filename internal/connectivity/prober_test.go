package connectivity

import (
	"context"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

func newHealthServer(t *testing.T) (*health.Server, healthpb.HealthClient) {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	healthServer := health.NewServer()
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	go func() {
		_ = server.Serve(listener)
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}

	//nolint:staticcheck // grpc.Dial is required for bufconn testing
	conn, err := grpc.Dial("bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})

	return healthServer, healthpb.NewHealthClient(conn)
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

func TestProber_ServingGoesOnline(t *testing.T) {
	_, client := newHealthServer(t)
	prober := NewProberWithClient(client, WithProberLogger(loggerForTests()))

	var seen []bool
	prober.Subscribe(func(online bool) { seen = append(seen, online) })

	require.False(t, prober.IsOnline())
	require.True(t, prober.ProbeOnce(context.Background()))
	require.True(t, prober.IsOnline())
	require.Equal(t, []bool{true}, seen)
}

func TestProber_NotServingNeedsThreshold(t *testing.T) {
	healthServer, client := newHealthServer(t)
	prober := NewProberWithClient(client,
		WithFailureThreshold(2),
		WithProberLogger(loggerForTests()),
	)

	require.True(t, prober.ProbeOnce(context.Background()))

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	require.True(t, prober.ProbeOnce(context.Background()), "single failure must not flip state")
	require.False(t, prober.ProbeOnce(context.Background()))
	require.False(t, prober.IsOnline())

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	require.True(t, prober.ProbeOnce(context.Background()))
}

func TestProber_UnknownServiceIsOffline(t *testing.T) {
	_, client := newHealthServer(t)
	prober := NewProberWithClient(client,
		WithService("vendor.orders.v1.OrderAcceptance"),
		WithFailureThreshold(1),
		WithProberLogger(loggerForTests()),
	)

	require.False(t, prober.ProbeOnce(context.Background()))
}

func TestProber_RunStopsOnCancel(t *testing.T) {
	_, client := newHealthServer(t)
	prober := NewProberWithClient(client, WithProberLogger(loggerForTests()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	online := make(chan bool, 1)
	prober.Subscribe(func(v bool) {
		select {
		case online <- v:
		default:
		}
	})

	go func() {
		prober.Run(ctx)
		close(done)
	}()

	require.True(t, <-online)
	cancel()
	<-done
	require.NoError(t, prober.Close())
}
