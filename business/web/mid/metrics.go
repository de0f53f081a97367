package mid

import (
	"context"
	"net/http"

	"github.com/ardanlabs/powledger/foundation/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request metrics shared by every route.
var (
	requests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Number of http requests handled.",
	})
	failures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_http_errors_total",
		Help: "Number of http requests that returned an error.",
	})
)

// Metrics updates program counters.
func Metrics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			requests.Inc()
			if err != nil {
				failures.Inc()
			}

			return err
		}

		return h
	}

	return m
}
