// Package netjoin is the network-join capability: a blocking connect with a
// bounded internal retry count.
package netjoin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrUnreachable reports that the network did not become available within the
// retry budget.
var ErrUnreachable = errors.New("netjoin: network unreachable")

// Joiner is the capability boundary. Connect blocks until the network is
// usable or the bounded retries are exhausted.
type Joiner interface {
	Connect(ctx context.Context) error
}

const (
	defaultMaxRetries = 5
	defaultRetryDelay = 2 * time.Second
	probeTimeout      = 5 * time.Second
)

// Prober joins by probing a reachability URL, typically the update source's
// health endpoint.
type Prober struct {
	url    string
	client *http.Client
	logger *slog.Logger

	// MaxRetries and RetryDelay bound the join attempt.
	MaxRetries int
	RetryDelay time.Duration
}

// NewProber builds a prober against the given URL.
func NewProber(url string, logger *slog.Logger) *Prober {
	return &Prober{
		url:        url,
		client:     &http.Client{Timeout: probeTimeout},
		logger:     logger,
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
	}
}

// Connect probes until a successful response or the retry budget runs out.
func (p *Prober) Connect(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		if err := p.probe(ctx); err == nil {
			p.logger.Info("network joined", "probe", p.url, "attempt", attempt)
			return nil
		} else {
			lastErr = err
			p.logger.Warn("network probe failed",
				"attempt", attempt, "max", p.MaxRetries, "error", err)
		}

		if attempt == p.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.RetryDelay):
		}
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}

func (p *Prober) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Any HTTP response proves the network path; the probe target's own
	// status codes are not this layer's concern.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}
