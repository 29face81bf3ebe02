package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer(), true)
	t.Cleanup(func() { observability.Init(nil, false) })

	observability.ObserveCatalogRequest("login", observability.OutcomeOK, 0.05)
	observability.ObserveCatalogRequest("scene-search", observability.OutcomeRateLimited, 0.01)
	observability.IncCatalogRetry("scene-search")

	observability.ObserveEntityCache("lru", "hit", 3)
	observability.ObserveEntityCache("redis", "miss", 1)
	observability.ObserveCacheOp("mget", nil, 0.002)
	observability.ObserveSceneEvent("dropped")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`catalog_request_duration_seconds_bucket`,
		`redis_operation_duration_seconds_count`,
		`catalog_retries_total{endpoint="scene-search"} 1`,
		`scene_events_total{outcome="dropped"} 1`,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "catalog_requests_total",
		`endpoint="login"`, `outcome="ok"`)
	assertHasMetricLine(t, body, "catalog_requests_total",
		`endpoint="scene-search"`, `outcome="rate_limited"`)
	assertHasMetricLine(t, body, "entity_cache_results_total",
		`tier="lru"`, `outcome="hit"`)
	assertHasMetricLine(t, body, "cache_op_total",
		`op="mget"`, `result="ok"`)
	assertHasMetricLine(t, body, "app_build_info",
		`version="test"`)
}
