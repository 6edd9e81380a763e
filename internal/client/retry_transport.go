package client

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// retryTransport retries safe requests on transport errors and on
// 429, 502, 503 and 504 responses with exponential backoff. Mutations are
// never retried because each accepted attempt appends an audit record.
type retryTransport struct {
	next        http.RoundTripper
	maxTries    uint
	maxElapsed  time.Duration
	initialWait time.Duration
}

func newRetryTransport(next http.RoundTripper, maxTries uint) *retryTransport {
	return &retryTransport{
		next:        next,
		maxTries:    maxTries,
		maxElapsed:  30 * time.Second,
		initialWait: 200 * time.Millisecond,
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.maxTries <= 1 || (req.Method != http.MethodGet && req.Method != http.MethodHead) {
		return t.next.RoundTrip(req)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initialWait

	attempt := 0
	return backoff.Retry(req.Context(), func() (*http.Response, error) {
		attempt++
		res, err := t.next.RoundTrip(req)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Str("url", req.URL.String()).Msg("Request failed, retrying")
			return nil, err
		}
		if !retryableStatus(res.StatusCode) || attempt >= int(t.maxTries) {
			return res, nil
		}

		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()

		log.Debug().Int("status", res.StatusCode).Int("attempt", attempt).Str("url", req.URL.String()).Msg("Retryable response")
		if secs, err := strconv.Atoi(res.Header.Get("Retry-After")); err == nil && secs > 0 {
			return nil, backoff.RetryAfter(secs)
		}
		return nil, fmt.Errorf("server returned %s", res.Status)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(t.maxTries),
		backoff.WithMaxElapsedTime(t.maxElapsed),
	)
}
