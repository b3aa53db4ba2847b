package app

import (
	"testing"
	"time"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverSQLite {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverSQLite, cfg.StorageDriver)
	}
	if cfg.SubmitterDriver != SubmitterDriverMock {
		t.Errorf("expected SubmitterDriver %s, got %s", SubmitterDriverMock, cfg.SubmitterDriver)
	}
	if cfg.ConnectivityDriver != ConnectivityDriverManual {
		t.Errorf("expected ConnectivityDriver %s, got %s", ConnectivityDriverManual, cfg.ConnectivityDriver)
	}
	if !cfg.PostgresAutoMigrate {
		t.Error("expected PostgresAutoMigrate to be true")
	}
	if cfg.GracePeriod != 5*time.Second {
		t.Errorf("expected GracePeriod 5s, got %s", cfg.GracePeriod)
	}
	if cfg.SubmitTimeout <= 0 || cfg.PersistTimeout <= 0 {
		t.Error("expected positive submit and persist timeouts")
	}
	if cfg.FailedRetention != 0 {
		t.Errorf("expected failed retention disabled by default, got %s", cfg.FailedRetention)
	}
	if !cfg.SyncOnEnqueue {
		t.Error("expected SyncOnEnqueue to be true")
	}
}

func TestConfig_Comparison(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg2 := DefaultConfig()

	if cfg1 != cfg2 {
		t.Error("two DefaultConfig instances should be equal")
	}

	cfg2.KafkaBrokers = "localhost:9092"
	if cfg1 == cfg2 {
		t.Error("modified config should not be equal to original")
	}
}

func TestSplitList(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "localhost:9092", want: []string{"localhost:9092"}},
		{name: "spaces and blanks", raw: " a:1 , ,b:2 ", want: []string{"a:1", "b:2"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitList(tc.raw)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}
