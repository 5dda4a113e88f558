package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotesSubmittedTotal counts quote requests turned into draft quotes.
	QuotesSubmittedTotal prometheus.Counter
	// QuotesSentTotal counts quotes sent to customers, including re-sends.
	QuotesSentTotal prometheus.Counter
	// QuoteApprovalsTotal counts approval link outcomes.
	QuoteApprovalsTotal *prometheus.CounterVec
	// QuotesExpiredTotal counts quotes moved to expired by the sweep.
	QuotesExpiredTotal prometheus.Counter
	// QuoteTotalCents records the grand total of submitted quotes in cents.
	QuoteTotalCents prometheus.Histogram
	// QuoteNotificationsTotal counts notification task outcomes.
	QuoteNotificationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers quote Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_submitted_total",
			Help:      "Number of quote requests submitted.",
		})
		QuotesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_sent_total",
			Help:      "Number of quotes sent to customers.",
		})
		QuoteApprovalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_approvals_total",
			Help:      "Approval link outcomes by result.",
		}, []string{"result"})
		QuotesExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_expired_total",
			Help:      "Number of sent quotes that lapsed without a decision.",
		})
		QuoteTotalCents = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_total_cents",
			Help:      "Grand total of submitted quotes in cents.",
			Buckets:   prometheus.ExponentialBuckets(10_000, 4, 8),
		})
		QuoteNotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_notifications_total",
			Help:      "Quote notification deliveries by kind and result.",
		}, []string{"kind", "result"})

		mustRegisterCollector(reg, &QuotesSubmittedTotal)
		mustRegisterCollector(reg, &QuotesSentTotal)
		mustRegisterCollector(reg, &QuoteApprovalsTotal)
		mustRegisterCollector(reg, &QuotesExpiredTotal)
		mustRegisterCollector(reg, &QuoteTotalCents)
		mustRegisterCollector(reg, &QuoteNotificationsTotal)
	})
}

// ObserveApproval records an approval link outcome if metrics are registered.
func ObserveApproval(result string) {
	if QuoteApprovalsTotal != nil {
		QuoteApprovalsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveSubmitted records a submitted quote and its total.
func ObserveSubmitted(totalCents int64) {
	if QuotesSubmittedTotal != nil {
		QuotesSubmittedTotal.Inc()
	}
	if QuoteTotalCents != nil {
		QuoteTotalCents.Observe(float64(totalCents))
	}
}

// ObserveSent records a quote sent to a customer.
func ObserveSent() {
	if QuotesSentTotal != nil {
		QuotesSentTotal.Inc()
	}
}

// ObserveExpired records quotes moved to expired.
func ObserveExpired(n int) {
	if QuotesExpiredTotal != nil && n > 0 {
		QuotesExpiredTotal.Add(float64(n))
	}
}

// ObserveNotification records a notification task outcome.
func ObserveNotification(kind, result string) {
	if QuoteNotificationsTotal != nil {
		QuoteNotificationsTotal.WithLabelValues(kind, result).Inc()
	}
}

// mustRegisterCollector registers *c, swapping in the existing collector when
// an identical one is already registered.
func mustRegisterCollector[T prometheus.Collector](reg prometheus.Registerer, c *T) {
	if err := reg.Register(*c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				*c = existing
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
