package fortnox

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/rezonia/ledger-bridge/internal/model"
)

// ClassifyStatus maps an HTTP status code to the failure taxonomy.
func ClassifyStatus(status int) model.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return model.KindRateLimited
	case status >= 500:
		return model.KindServer
	case status >= 400:
		return model.KindClient
	default:
		return model.KindUnknown
	}
}

// Classify maps any transport or HTTP failure to the closed taxonomy. It is
// the classifier consulted by the retry policy, so the mapping decides what
// gets retried: timeouts, 429 and 5xx do, everything else propagates.
func Classify(err error) model.ErrorKind {
	if err == nil {
		return model.KindUnknown
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.KindTimeout
	}
	return model.KindUnknown
}
