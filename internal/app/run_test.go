package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := baseTestConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.MetricsAddr = ""

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg) }()

	base := "http://" + cfg.HTTPAddr
	waitHTTP(t, base+"/livez")

	body := `{"supplierId":"1","supplierName":"Fresh Vegetables Delhi","items":[{"name":"Onions","quantity":10,"unit":"kg"}],"totalAmount":250}`
	resp, err := http.Post(base+"/v1/orders", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Сеть есть и отправка mock: заказ синхронизируется сразу после постановки.
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/v1/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		var status struct {
			Synced int `json:"synced"`
		}
		return json.NewDecoder(resp.Body).Decode(&status) == nil && status.Synced == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := baseTestConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}
