package assets

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/resilience"
)

const userAgent = "pluginhost-assets/1.0"

// Fetcher downloads remote images. Each origin has its own circuit breaker
// so a dead host fails fast without affecting others.
type Fetcher struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
	logger   *zap.Logger
}

// NewFetcher builds a fetcher from the assets configuration. Retries happen
// in the transport and default to none.
func NewFetcher(cfg config.AssetsConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("assets.fetch")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.FetchTimeout).
		SetHeader("User-Agent", userAgent)
	if cfg.MaxBytes > 0 {
		restyClient.SetResponseBodyLimit(int(cfg.MaxBytes))
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	breakers := resilience.NewGroup("assets", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("asset origin breaker changed state",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Fetcher{
		resty:    restyClient,
		limiter:  limiter,
		breakers: breakers,
		logger:   logger,
	}
}

// Fetch downloads rawURL. A non-2xx status is an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid asset url %q", rawURL)
	}
	origin := u.Scheme + "://" + u.Host

	var body []byte
	err = f.breakers.Get(origin).Execute(func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit error: %w", err)
		}

		resp, err := f.resty.R().SetContext(ctx).Get(rawURL)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("%w: %s", ErrStatus, resp.Status())
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	f.logger.Debug("asset fetched", zap.String("url", rawURL), zap.Int("bytes", len(body)))
	return body, nil
}

// BreakerStates reports breaker state per origin.
func (f *Fetcher) BreakerStates() map[string]resilience.State {
	return f.breakers.States()
}
