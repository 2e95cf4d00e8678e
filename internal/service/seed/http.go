package seed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/version"
)

const maxSeedBodyBytes = 4 << 20

// RetryConfig задаёт повторные попытки загрузки каталога.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// HTTPProvider загружает каталог по URL с повторами и экспоненциальной задержкой.
type HTTPProvider struct {
	url    string
	client *http.Client
	retry  RetryConfig
	logger *log.Entry
}

// NewHTTPProvider создаёт поставщика. client == nil означает клиент с таймаутом 10s.
func NewHTTPProvider(url string, client *http.Client, retry RetryConfig, logger *log.Entry) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffFactor < 1 {
		retry.BackoffFactor = 1
	}
	if logger == nil {
		logger = log.WithField("component", "seed-http")
	}
	return &HTTPProvider{url: url, client: client, retry: retry, logger: logger}
}

// Fetch скачивает каталог. Ответы 4xx не повторяются.
func (p *HTTPProvider) Fetch(ctx context.Context) ([]domain.Product, error) {
	var lastErr error
	delay := p.retry.InitialDelay

	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		products, retryable, err := p.fetchOnce(ctx)
		if err == nil {
			if attempt > 1 {
				p.logger.WithFields(log.Fields{
					"url":     p.url,
					"attempt": attempt,
				}).Info("seed catalog fetched after retry")
			}
			return products, nil
		}
		lastErr = err

		if !retryable || attempt == p.retry.MaxAttempts {
			break
		}

		p.logger.WithError(err).WithFields(log.Fields{
			"url":     p.url,
			"attempt": attempt,
			"delay":   delay,
		}).Warn("seed catalog fetch failed, retrying")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrSeedUnavailable, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.retry.BackoffFactor)
		if p.retry.MaxDelay > 0 && delay > p.retry.MaxDelay {
			delay = p.retry.MaxDelay
		}
	}

	return nil, lastErr
}

func (p *HTTPProvider) fetchOnce(ctx context.Context) ([]domain.Product, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: build request: %v", domain.ErrSeedUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("%w: %v", domain.ErrSeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("%w: unexpected status %d", domain.ErrSeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSeedBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("%w: read body: %v", domain.ErrSeedUnavailable, err)
	}

	products, err := decodeJSON(body)
	return products, false, err
}
