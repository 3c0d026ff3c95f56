package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/web"
	"golang.org/x/time/rate"
)

// RateLimit rejects requests once the configured rate is exceeded. Peers
// that rebroadcast aggressively get a 429 instead of holding store locks.
// A non-positive rate disables the limiter.
func RateLimit(perSecond float64, burst int) web.Middleware {
	if perSecond <= 0 {
		return nil
	}

	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !limiter.Allow() {
				return errs.NewTrusted(errors.New("rate limit exceeded"), http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
