package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"menucrawler/crawler/internal/config"
	"menucrawler/crawler/internal/domain"
	"menucrawler/crawler/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// PageFetcher retrieves server-delivered markup and binary assets.
// Every call blocks until the response arrives or the request times out.
type PageFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

type pageFetcher struct {
	rl            ratelimit.Limiter
	config        config.CrawlerConfig
	httpClient    *resty.Client
	proxySupplier proxy.ProxySupplier
	robots        *robotsChecker
}

func NewPageFetcher(cfg config.CrawlerConfig, proxySupplier proxy.ProxySupplier) PageFetcher {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.MaxRedirects)).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.5").
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: !cfg.VerifySSL,
		})

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	f := &pageFetcher{
		rl:            rl,
		config:        cfg,
		httpClient:    client,
		proxySupplier: proxySupplier,
	}
	if cfg.RespectRobots {
		f.robots = newRobotsChecker(client, cfg.UserAgent)
	}
	return f
}

func (f *pageFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}

	html := resp.String()
	if html == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrEmptyPage, url)
	}

	log.Debugf("Fetched %s (%d bytes)", url, len(html))
	return html, nil
}

func (f *pageFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	body := resp.Bytes()
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyPage, url)
	}
	return body, nil
}

func (f *pageFetcher) get(ctx context.Context, url string) (*resty.Response, error) {
	if f.robots != nil && !f.robots.allowed(ctx, url) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDisallowedByRobots, url)
	}

	f.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(f.config.Timeout)*time.Second)
	defer cancel()

	resp, err := f.httpClient.R().
		SetContext(reqCtx).
		Get(url)

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}

		// One more attempt through the next proxy before giving up
		if newProxy := f.nextProxy(); newProxy != "" {
			log.Warnf("🔄 Request to %s failed (%v), retrying via proxy %s", url, err, newProxy)
			f.httpClient.SetProxy(newProxy)

			// The first attempt may have used up reqCtx
			retryCtx, retryCancel := context.WithTimeout(ctx, time.Duration(f.config.Timeout)*time.Second)
			defer retryCancel()

			retryResp, retryErr := f.httpClient.R().
				SetContext(retryCtx).
				Get(url)
			if retryErr == nil && !retryResp.IsError() {
				log.Infof("✅ Retry successful with new proxy")
				return retryResp, nil
			}
		}

		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), strings.TrimSpace(resp.Status()))
	}

	return resp, nil
}

func (f *pageFetcher) nextProxy() string {
	if f.proxySupplier == nil {
		return ""
	}
	return f.proxySupplier.Get()
}
