// Registers:
//
//	#FeeFlow_quotes_total
//	#FeeFlow_quote_errors_total
//	#go_* and process_* system metrics
//
// Exposes them on the configured listen address using the Prometheus HTTP handler
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once        sync.Once
	quotesTotal *prometheus.CounterVec
	quoteErrors *prometheus.CounterVec
)

func Init(listen string) {
	once.Do(func() {
		if listen == "" {
			listen = "0.0.0.0:2112"
		}

		quotesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "FeeFlow_quotes_total",
				Help: "Number of fee quotes served",
			},
			[]string{"venue", "side"},
		)

		quoteErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "FeeFlow_quote_errors_total",
				Help: "Number of failed fee quote requests",
			},
			[]string{"venue"},
		)

		_ = prometheus.Register(quotesTotal)
		_ = prometheus.Register(quoteErrors)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(listen, nil); err != nil {
				panic("metrics server failed: " + err.Error())
			}
		}()
	})
}

// IncrementQuote increases the quote counter for a venue and side.
func IncrementQuote(venue, side string) {
	if quotesTotal != nil && IsFeatureEnabled(FeatureQuoteCounters) {
		quotesTotal.WithLabelValues(venue, side).Inc()
	}
}

// IncrementQuoteError increases the error counter for a venue.
func IncrementQuoteError(venue string) {
	if quoteErrors != nil && IsFeatureEnabled(FeatureQuoteCounters) {
		quoteErrors.WithLabelValues(venue).Inc()
	}
}
