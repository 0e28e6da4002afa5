package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefest_checkouts_total",
			Help: "Checkout submissions by kind and result",
		},
		[]string{"kind", "result"},
	)

	couponLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefest_coupon_lookups_total",
			Help: "Coupon validations by result",
		},
		[]string{"result"},
	)

	likes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefest_likes_total",
			Help: "Likes by resulting status",
		},
		[]string{"status"},
	)

	scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefest_ticket_scans_total",
			Help: "Ticket validations by method and result code",
		},
		[]string{"method", "code"},
	)

	payments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefest_payments_total",
			Help: "Payment gateway operations",
		},
		[]string{"provider", "operation", "result"},
	)

	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prefest_gateway_request_duration_seconds",
			Help:    "Duration of payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider", "operation"},
	)

	checkoutLocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prefest_checkout_locks",
			Help: "Checkout submissions currently holding a lock",
		},
	)

	drafts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prefest_drafts",
			Help: "Stored event drafts",
		},
	)
)

// Monitor records application metrics. A nil *Monitor is valid and records nothing.
type Monitor struct {
	redis redis.Cmdable
}

func NewMonitor(redisClient redis.Cmdable) *Monitor {
	return &Monitor{redis: redisClient}
}

// Run samples Redis backed gauges until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectRedisMetrics(ctx)
		}
	}
}

func (m *Monitor) collectRedisMetrics(ctx context.Context) {
	if n, err := m.countKeys(ctx, "checkout:lock:*"); err == nil {
		checkoutLocks.Set(float64(n))
	} else {
		slog.Warn("collect checkout lock metric", "error", err)
	}
	if n, err := m.countKeys(ctx, "draft:*"); err == nil {
		drafts.Set(float64(n))
	} else {
		slog.Warn("collect draft metric", "error", err)
	}
}

func (m *Monitor) countKeys(ctx context.Context, pattern string) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := m.redis.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func (m *Monitor) TrackCheckout(kind, result string) {
	if m == nil {
		return
	}
	checkouts.WithLabelValues(kind, result).Inc()
}

func (m *Monitor) TrackCouponLookup(result string) {
	if m == nil {
		return
	}
	couponLookups.WithLabelValues(result).Inc()
}

func (m *Monitor) TrackLike(status string) {
	if m == nil {
		return
	}
	likes.WithLabelValues(status).Inc()
}

func (m *Monitor) TrackScan(method, code string) {
	if m == nil {
		return
	}
	scans.WithLabelValues(method, code).Inc()
}

func (m *Monitor) TrackPayment(provider, operation, result string) {
	if m == nil {
		return
	}
	payments.WithLabelValues(provider, operation, result).Inc()
}

func (m *Monitor) TrackGatewayCall(provider, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	gatewayLatency.WithLabelValues(provider, operation).Observe(duration.Seconds())
}
