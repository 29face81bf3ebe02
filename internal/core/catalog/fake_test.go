package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorded struct {
	Endpoint string
	Token    string
	Body     map[string]any
}

type reply struct {
	status int
	body   string
}

// fakeCatalog serves scripted envelopes per endpoint. When an endpoint's
// script runs out, its last reply repeats.
type fakeCatalog struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	scripts map[string][]reply
	calls   []recorded
}

func newFakeCatalog(t *testing.T) *fakeCatalog {
	t.Helper()
	f := &fakeCatalog{t: t, scripts: map[string][]reply{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCatalog) on(endpoint string, replies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range replies {
		f.scripts[endpoint] = append(f.scripts[endpoint], reply{status: http.StatusOK, body: r})
	}
}

func (f *fakeCatalog) onStatus(endpoint string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[endpoint] = append(f.scripts[endpoint], reply{status: status, body: body})
}

func (f *fakeCatalog) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		f.t.Errorf("method=%s want POST", r.Method)
	}
	endpoint := strings.TrimPrefix(r.URL.Path, "/api/")
	b, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(b) > 0 {
		if err := json.Unmarshal(b, &body); err != nil {
			f.t.Errorf("%s: bad request body %q: %v", endpoint, b, err)
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, recorded{Endpoint: endpoint, Token: r.Header.Get(authHeader), Body: body})
	script := f.scripts[endpoint]
	var rp reply
	switch len(script) {
	case 0:
		rp = reply{status: http.StatusOK, body: `{"data":null,"errorCode":null,"errorMessage":null}`}
	case 1:
		rp = script[0]
	default:
		rp, f.scripts[endpoint] = script[0], script[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rp.status)
	_, _ = io.WriteString(w, rp.body)
}

func (f *fakeCatalog) endpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Endpoint
	}
	return out
}

func (f *fakeCatalog) call(i int) recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.calls) {
		f.t.Fatalf("call %d not made; calls=%d", i, len(f.calls))
	}
	return f.calls[i]
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (f *fakeCatalog) client(t *testing.T, opts ...Option) (*Client, *sleepRecorder) {
	t.Helper()
	sr := &sleepRecorder{}
	all := append([]Option{
		WithHTTPClient(f.srv.Client()),
		WithSleep(sr.sleep),
		WithListIDFunc(func() string { return "abcdefghij" }),
	}, opts...)
	c, err := New(Config{BaseURL: f.srv.URL + "/api"}, all...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, sr
}

// loggedIn is client with a session already in place, so tests of other
// endpoints don't have to script a login.
func (f *fakeCatalog) loggedIn(t *testing.T, opts ...Option) (*Client, *sleepRecorder) {
	t.Helper()
	c, sr := f.client(t, opts...)
	c.session = &Session{Token: "tok", IssuedAt: time.Now()}
	return c, sr
}

func ok(data string) string {
	return `{"data":` + data + `,"errorCode":null,"errorMessage":null}`
}

func fail(code, msg string) string {
	return `{"data":null,"errorCode":"` + code + `","errorMessage":"` + msg + `"}`
}
