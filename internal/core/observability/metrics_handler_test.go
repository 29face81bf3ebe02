package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)
	t.Cleanup(func() { Init(nil, false) })

	ObserveHTTP("GET", "/search", 200, 0.001)
	ObserveCatalogRequest("scene-search", OutcomeOK, 0.2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, s := range []string{
		`http_requests_total{method="GET",route="/search",status="200"} 1`,
		`catalog_requests_total{endpoint="scene-search",outcome="ok"} 1`,
		`catalog_request_duration_seconds_count{endpoint="scene-search"} 1`,
	} {
		if !strings.Contains(body, s) {
			t.Fatalf("missing %q in:\n%s", s, body)
		}
	}
}

func TestInit_SameRegistryTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)
	IncCatalogRetry("scene-search")
	Init(reg, true)
	IncCatalogRetry("scene-search")
	t.Cleanup(func() { Init(nil, false) })

	got := testutil.ToFloat64(current.Load().catalogRetries.WithLabelValues("scene-search"))
	if got != 2 {
		t.Fatalf("retries=%v want 2", got)
	}
}

func TestInit_DisabledDoesNotTouchRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, false)
	t.Cleanup(func() { Init(nil, false) })

	ObserveSceneEvent("sent")
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) != 0 {
		t.Fatalf("expected empty registry, got %d families", len(mfs))
	}
}

func TestObserveCacheOp_Result(t *testing.T) {
	Init(prometheus.NewRegistry(), true)
	t.Cleanup(func() { Init(nil, false) })

	ObserveCacheOp("mget", nil, 0.001)
	ObserveCacheOp("mget", errors.New("down"), 0.001)
	ObserveCacheOp("mget", errors.New("down"), 0.001)

	c := current.Load()
	if v := testutil.ToFloat64(c.cacheOps.WithLabelValues("mget", "ok")); v != 1 {
		t.Fatalf("ok=%v want 1", v)
	}
	if v := testutil.ToFloat64(c.cacheOps.WithLabelValues("mget", "error")); v != 2 {
		t.Fatalf("error=%v want 2", v)
	}
}

func TestObserveEntityCache_IgnoresNonPositive(t *testing.T) {
	Init(prometheus.NewRegistry(), true)
	t.Cleanup(func() { Init(nil, false) })

	ObserveEntityCache("lru", "hit", 0)
	ObserveEntityCache("lru", "hit", 3)
	ObserveEntityCache("lru", "hit", -1)

	if v := testutil.ToFloat64(current.Load().entityCache.WithLabelValues("lru", "hit")); v != 3 {
		t.Fatalf("hits=%v want 3", v)
	}
}
