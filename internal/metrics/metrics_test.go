package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMetricProvider_PrometheusExposesCounters(t *testing.T) {
	mp, err := NewMetricProvider(
		WithServiceName("depth-compare-test"),
		WithProviderConfig(ProviderCfg{Provider: PrometheusProvider}),
	)
	if err != nil {
		t.Fatalf("NewMetricProvider: %v", err)
	}
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	counter, err := mp.Meter("test").Int64Counter("depth_test_events_total")
	if err != nil {
		t.Fatalf("Int64Counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	srv := httptest.NewServer(NewPromServer(WithPort(0)).Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "depth_test_events") {
		t.Errorf("expected counter in scrape output, got:\n%s", body)
	}
}

func TestNewMetricProvider_NoReaders(t *testing.T) {
	mp, err := NewMetricProvider()
	if err != nil {
		t.Fatalf("NewMetricProvider: %v", err)
	}
	if err := mp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
