package robokassa

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/mwork/robokassa-gateway/internal/pkg/logger"
)

const (
	defaultTimeout       = 5 * time.Second
	defaultRetryMax      = 3
	defaultRetryInterval = 200 * time.Millisecond
	maxRetryInterval     = 2 * time.Second

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// transport posts to the gateway and retries temporary failures. Decode errors are never
// retried because they happen after a response was received.
type transport struct {
	http          *resty.Client
	retryMax      int
	retryInterval time.Duration
}

func newTransport(timeout time.Duration, retryMax int) *transport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if retryMax < 0 {
		retryMax = 0
	}
	return &transport{
		http:          resty.New().SetTimeout(timeout),
		retryMax:      retryMax,
		retryInterval: defaultRetryInterval,
	}
}

// post sends body and returns the raw 2xx response body.
func (t *transport) post(ctx context.Context, op, endpoint, contentType string, body any) ([]byte, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = t.retryInterval
	exp.MaxInterval = maxRetryInterval
	exp.MaxElapsedTime = 0

	var result []byte
	attempt := 0
	operation := func() error {
		attempt++
		logger.LogDebug(ctx, "robokassa request", "operation", op, "endpoint", endpoint, "attempt", attempt)
		resp, err := t.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", contentType).
			SetBody(body).
			Post(endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(&TransportError{Operation: op, Err: ctx.Err()})
			}
			return &TransportError{Operation: op, Err: err}
		}

		if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			terr := &TransportError{Operation: op, StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 512)}
			if !terr.Temporary() {
				return backoff.Permanent(terr)
			}
			return terr
		}

		result = resp.Body()
		return nil
	}

	notify := func(err error, next time.Duration) {
		logger.LogWarn(ctx, "robokassa request failed, retrying",
			"operation", op,
			"error", err.Error(),
			"next_attempt_in", next.String(),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(t.retryMax)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			return nil, terr
		}
		return nil, &TransportError{Operation: op, Err: err}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
