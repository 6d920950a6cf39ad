package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"menucrawler/crawler/internal/config"
	"menucrawler/crawler/internal/domain"
	"menucrawler/crawler/internal/proxy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		Timeout:      5,
		MaxRetries:   0,
		UserAgent:    "menucrawler-test",
		MaxRedirects: 3,
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/menu", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body>ua=%s lang=%s</body></html>", r.UserAgent(), r.Header.Get("Accept-Language"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/menu", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/private/menu", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>secret</html>")
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchHTML(t *testing.T) {
	srv := newServer(t)
	f := NewPageFetcher(testConfig(), nil)

	html, err := f.FetchHTML(context.Background(), srv.URL+"/menu")
	require.NoError(t, err)
	assert.Contains(t, html, "ua=menucrawler-test")
	assert.Contains(t, html, "lang=tr-TR")
}

func TestFetchHTML_FollowsRedirects(t *testing.T) {
	srv := newServer(t)
	f := NewPageFetcher(testConfig(), nil)

	html, err := f.FetchHTML(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Contains(t, html, "ua=")
}

func TestFetchHTML_HTTPError(t *testing.T) {
	srv := newServer(t)
	f := NewPageFetcher(testConfig(), nil)

	_, err := f.FetchHTML(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error: 404")
}

func TestFetchHTML_EmptyPage(t *testing.T) {
	srv := newServer(t)
	f := NewPageFetcher(testConfig(), nil)

	_, err := f.FetchHTML(context.Background(), srv.URL+"/empty")
	assert.ErrorIs(t, err, domain.ErrEmptyPage)
}

func TestFetchHTML_TransportError(t *testing.T) {
	srv := newServer(t)
	url := srv.URL + "/menu"
	srv.Close()

	f := NewPageFetcher(testConfig(), nil)

	_, err := f.FetchHTML(context.Background(), url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch URL")
}

func TestFetchHTML_Cancelled(t *testing.T) {
	srv := newServer(t)
	f := NewPageFetcher(testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FetchHTML(ctx, srv.URL+"/menu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request cancelled")
}

func TestFetchHTML_RespectsRobots(t *testing.T) {
	srv := newServer(t)

	cfg := testConfig()
	cfg.RespectRobots = true
	f := NewPageFetcher(cfg, nil)

	_, err := f.FetchHTML(context.Background(), srv.URL+"/private/menu")
	assert.ErrorIs(t, err, domain.ErrDisallowedByRobots)

	_, err = f.FetchHTML(context.Background(), srv.URL+"/menu")
	assert.NoError(t, err)

	cfg.RespectRobots = false
	html, err := NewPageFetcher(cfg, nil).FetchHTML(context.Background(), srv.URL+"/private/menu")
	require.NoError(t, err)
	assert.Contains(t, html, "secret")
}

func TestFetchHTML_FailsOverToNextProxyAfterTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)
	t.Cleanup(func() { close(release) })

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body>via fast proxy: %s</body></html>", r.URL.Path)
	}))
	t.Cleanup(fast.Close)

	cfg := testConfig()
	cfg.Timeout = 1
	f := NewPageFetcher(cfg, proxy.NewStaticSupplier([]string{slow.URL, fast.URL}))

	html, err := f.FetchHTML(context.Background(), "http://menu.example/menu")
	require.NoError(t, err)
	assert.Contains(t, html, "via fast proxy: /menu")
}

func TestFetchBytes(t *testing.T) {
	srv := newServer(t)
	f := NewPageFetcher(testConfig(), nil)

	body, err := f.FetchBytes(context.Background(), srv.URL+"/logo.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, body)
}

func TestPacer(t *testing.T) {
	ctx := context.Background()

	var nilPacer *Pacer
	assert.NoError(t, nilPacer.Wait(ctx))

	unlimited := NewPacer(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, unlimited.Wait(ctx))
	}

	p := NewPacer(50 * time.Millisecond)
	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, NewPacer(time.Hour).Wait(cancelled))
}
