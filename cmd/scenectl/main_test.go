package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/pflag"
)

func searchFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("search", pflag.ContinueOnError)
	addSearchFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return fs
}

func TestSearchParamsFromFlags(t *testing.T) {
	fs := searchFlags(t, "--bbox", "10,20,30,40", "--max-cloud-cover", "15",
		"--start", "2021-01-01", "--end", "2021-06-30", "--months", "6,7", "--max-results", "5")
	p, err := searchParamsFromFlags("landsat_ot_c2_l2", fs)
	if err != nil {
		t.Fatal(err)
	}
	if p.BBox == nil || p.BBox.MinX != 10 || p.BBox.MaxY != 40 {
		t.Fatalf("bbox=%+v", p.BBox)
	}
	if p.Longitude != nil || p.MaxCloudCover == nil || *p.MaxCloudCover != 15 {
		t.Fatalf("params=%+v", p)
	}
	if p.MaxResults != 5 || len(p.Months) != 2 || p.StartDate != "2021-01-01" {
		t.Fatalf("params=%+v", p)
	}
	if sf := p.SceneFilter(); sf.Spatial == nil || sf.Acquisition == nil {
		t.Fatalf("filter=%+v", sf)
	}
}

func TestSearchParamsFromFlags_NumericFilterValue(t *testing.T) {
	p, err := searchParamsFromFlags("d", searchFlags(t, "--filter-id", "5e83d0b8e7f6734c", "--filter-value", "42"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(p.MetadataFilter)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"value":42,"operand":"="`) {
		t.Fatalf("filter=%s", b)
	}
}

func TestSearchParamsFromFlags_Errors(t *testing.T) {
	cases := map[string][]string{
		"lone lon":    {"--lon", "10"},
		"bad bbox":    {"--bbox", "1,2,3"},
		"cloud cover": {"--max-cloud-cover", "120"},
		"lone start":  {"--start", "2021-01-01"},
		"bad date":    {"--start", "2021-13-01", "--end", "2021-12-31"},
		"bad month":   {"--months", "0"},
		"lone filter": {"--filter-id", "abc"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := searchParamsFromFlags("d", searchFlags(t, args...)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// fakeCatalog answers login, logout and scene-metadata.
func fakeCatalog(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ep := strings.TrimPrefix(r.URL.Path, "/api/")
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		calls = append(calls, ep)
		mu.Unlock()
		switch ep {
		case "login":
			_, _ = io.WriteString(w, `{"data":"tok","errorCode":null,"errorMessage":null}`)
		case "scene-metadata":
			_, _ = io.WriteString(w, `{"data":{"entityId":"E1","displayId":"LC08_X",`+
				`"temporalCoverage":{"startDate":"2024-01-05","endDate":"2024-01-06"}},"errorCode":null,"errorMessage":null}`)
		default:
			_, _ = io.WriteString(w, `{"data":null,"errorCode":null,"errorMessage":null}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		flagDataset, flagCatalogURL, flagBrowse = "", "", false
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDisplayIDCommand_LogsInAndOut(t *testing.T) {
	srv, calls := fakeCatalog(t)
	t.Setenv("CATALOG_USERNAME", "u")
	t.Setenv("CATALOG_PASSWORD", "p")

	out, err := execute(t, "display-id", "--catalog-url", srv.URL+"/api/", "-d", "landsat_ot_c2_l2", "E1")
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	if got["display_id"] != "LC08_X" {
		t.Fatalf("got %v", got)
	}
	if s := strings.Join(*calls, ","); s != "login,scene-metadata,logout" {
		t.Fatalf("calls=%s", s)
	}
}

func TestMetadataCommand_KeepsOrder(t *testing.T) {
	srv, _ := fakeCatalog(t)
	t.Setenv("CATALOG_USERNAME", "u")
	t.Setenv("CATALOG_PASSWORD", "p")

	out, err := execute(t, "metadata", "--catalog-url", srv.URL+"/api/", "-d", "d", "E1", "E2", "E3")
	if err != nil {
		t.Fatal(err)
	}
	var recs []map[string]any
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	if len(recs) != 3 {
		t.Fatalf("records=%d want 3", len(recs))
	}
}

func TestCommands_RequireCredentialsAndDataset(t *testing.T) {
	t.Setenv("CATALOG_USERNAME", "")
	t.Setenv("CATALOG_PASSWORD", "")
	if _, err := execute(t, "display-id", "E1"); err == nil || !strings.Contains(err.Error(), "--dataset") {
		t.Fatalf("err=%v", err)
	}
	if _, err := execute(t, "display-id", "-d", "d", "E1"); err == nil || !strings.Contains(err.Error(), "CATALOG_USERNAME") {
		t.Fatalf("err=%v", err)
	}
}
