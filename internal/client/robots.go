package client

import (
	"context"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"resty.dev/v3"
)

// robotsChecker caches robots.txt per host. Hosts whose robots.txt cannot be
// fetched or parsed are treated as allowing everything.
type robotsChecker struct {
	httpClient *resty.Client
	userAgent  string

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

func newRobotsChecker(httpClient *resty.Client, userAgent string) *robotsChecker {
	return &robotsChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		cache:      make(map[string]*robotstxt.RobotsData),
	}
}

func (r *robotsChecker) allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	r.mu.Lock()
	data, cached := r.cache[u.Host]
	r.mu.Unlock()

	if !cached {
		data = r.load(ctx, u)
		r.mu.Lock()
		r.cache[u.Host] = data
		r.mu.Unlock()
	}

	if data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, r.userAgent)
}

func (r *robotsChecker) load(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := r.httpClient.R().
		SetContext(reqCtx).
		Get(robotsURL)
	if err != nil {
		log.Debugf("robots.txt unavailable for %s: %v", u.Host, err)
		return nil
	}

	data, err := robotstxt.FromStatusAndString(resp.StatusCode(), resp.String())
	if err != nil {
		log.Debugf("robots.txt unparsable for %s: %v", u.Host, err)
		return nil
	}
	return data
}
