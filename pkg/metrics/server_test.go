package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServeExposesRegistryUntilCanceled(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "devicetrade_scrape_total", Help: "scrape check"})
	reg.MustRegister(counter)
	counter.Inc()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveListener(ctx, ln, reg, nil) }()

	var body string
	for i := 0; i < 50; i++ {
		resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
		if err == nil {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			body = string(raw)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(body, "devicetrade_scrape_total 1") {
		t.Fatalf("expected scrape counter in output, got %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("metrics listener did not stop")
	}
}

func TestServeDisabledWithoutAddr(t *testing.T) {
	if err := Serve(context.Background(), "", prometheus.NewRegistry(), nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
