package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestProvider_RegistersStandardCollectors_AndBuildInfo(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test", Revision: "r", BuildDate: "now"}})

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "smoke"})
	p.Register(g)
	g.Set(42)

	if n := testutil.CollectAndCount(g); n == 0 {
		t.Fatalf("expected at least 1 sample from test_gauge, got %d", n)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()

	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected go_goroutines in payload; got:\n%s", body)
	}
	if !strings.Contains(body, "process_cpu_seconds_total") && !strings.Contains(body, "process_start_time_seconds") {
		t.Fatalf("expected process_* metrics in payload; got:\n%s", body)
	}
	if !strings.Contains(body, `service="catalog-gateway"`) {
		t.Fatalf("expected default service label in payload; got:\n%s", body)
	}
}

func TestProvider_NoRuntime_OnlyBuildInfo(t *testing.T) {
	p := Init(Config{NoRuntime: true, Build: BuildInfo{Service: "scenectl"}})

	want := `
# HELP app_build_info Build info for this binary (value is always 1).
# TYPE app_build_info gauge
app_build_info{build_date="",revision="",service="scenectl",version="dev"} 1
`
	if err := testutil.GatherAndCompare(p.Gatherer(), strings.NewReader(want)); err != nil {
		t.Fatal(err)
	}
}
