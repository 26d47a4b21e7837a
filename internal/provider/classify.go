package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// StatusKind maps an upstream HTTP status to an error kind. 2xx statuses are
// not errors and must not reach this function; anything unrecognized is
// treated as invalid data so it is neither retried nor cached positively.
func StatusKind(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	default:
		return KindInvalidData
	}
}

// TransportError classifies a failed round trip. Timeouts and connection
// failures are transient; a canceled context is passed through unclassified
// so cancellation is never retried.
func TransportError(providerName string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return Wrap(KindTransient, providerName, err)
		}
		return err
	}
	return Wrap(KindTransient, providerName, err)
}
