package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/dairydesk/internal/health"
	"github.com/vladislavdragonenkov/dairydesk/internal/version"
)

func findFreePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestStartMetricsServer_Endpoints(t *testing.T) {
	port := findFreePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	srv := startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), log.WithField("test", "http"), healthHandler)
	defer shutdownHTTP(srv, log.WithField("test", "http"))

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitFor(t, base+"/livez")

	if code, body := getBody(t, base+"/metrics"); code != http.StatusOK || body == "" {
		t.Fatalf("unexpected /metrics response: %d", code)
	}
	if code, _ := getBody(t, base+"/healthz"); code != http.StatusOK {
		t.Fatalf("expected 200 for /healthz, got %d", code)
	}
	if code, body := getBody(t, base+"/livez"); code != http.StatusOK || body != "ok" {
		t.Fatalf("unexpected /livez response: %d %q", code, body)
	}

	if code, body := getBody(t, base+"/readyz"); code != http.StatusServiceUnavailable || body != "starting" {
		t.Fatalf("readyz before bootstrap: %d %q", code, body)
	}
	healthHandler.SetReady(true)
	if code, _ := getBody(t, base+"/readyz"); code != http.StatusOK {
		t.Fatalf("expected 200 for /readyz after ready, got %d", code)
	}
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.Timezone = "UTC"

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_ServesSeededCatalog(t *testing.T) {
	httpPort := findFreePort(t)
	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", httpPort)
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.Timezone = "UTC"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/products", httpPort)
	waitFor(t, url)

	code, body := getBody(t, url)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var products []map[string]any
	if err := json.Unmarshal([]byte(body), &products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) == 0 {
		t.Fatal("expected embedded catalog to be seeded")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "storage driver", mutate: func(c *Config) { c.StorageDriver = "invalid-driver" }, wantErr: "unsupported storage driver"},
		{name: "timezone", mutate: func(c *Config) { c.Timezone = "Nowhere/City" }, wantErr: "invalid timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.HTTPAddr = "127.0.0.1:0"
			cfg.GRPCAddr = "127.0.0.1:0"
			cfg.MetricsAddr = "127.0.0.1:0"
			tt.mutate(&cfg)

			err := Run(context.Background(), cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q error, got %v", tt.wantErr, err)
			}
		})
	}
}

func waitFor(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s did not become available", url)
}
