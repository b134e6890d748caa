package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	seatLockOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_lock_operations_total",
			Help: "Seat lock table operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	seatLockDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seat_lock_duration_seconds",
			Help:    "How long seat locks were held before release or expiry",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_total",
			Help: "Reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	reservationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_version_conflicts_total",
			Help: "Optimistic concurrency conflicts seen while reserving seats",
		},
	)

	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_settlements_total",
			Help: "Payment settlements by outcome",
		},
		[]string{"outcome"},
	)

	seatsReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booked_seats_released_total",
			Help: "Booked seats returned to the pool",
		},
		[]string{"reason"},
	)

	broadcastSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_subscribers",
			Help: "Currently connected seat event subscribers",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	broadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_events_dropped_total",
			Help: "Seat events dropped because a subscriber buffer was full",
		},
	)
)

// SeatLockOperation counts a lock table operation, e.g. ("acquire", "granted").
func SeatLockOperation(operation, outcome string) {
	seatLockOperations.WithLabelValues(operation, outcome).Inc()
}

// SeatLockReleased observes how long a lock was held.
func SeatLockReleased(held time.Duration) {
	seatLockDuration.Observe(held.Seconds())
}

// Reservation counts a reservation outcome: reserved, conflict,
// write_conflict, invalid or error.
func Reservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

// ReservationVersionConflict counts one lost compare-and-swap.
func ReservationVersionConflict() {
	reservationRetries.Inc()
}

// Settlement counts a settlement outcome: completed, failed.
func Settlement(outcome string) {
	settlements.WithLabelValues(outcome).Inc()
}

// SeatsReleased counts booked seats returned to the pool for reason
// (payment_failed, cancelled, expired, compensation).
func SeatsReleased(reason string, n int) {
	seatsReleased.WithLabelValues(reason).Add(float64(n))
}

// SubscriberAdded and SubscriberRemoved track live broadcast subscribers.
func SubscriberAdded()   { broadcastSubscribers.Inc() }
func SubscriberRemoved() { broadcastSubscribers.Dec() }

// BroadcastDropped counts one event dropped for a slow subscriber.
func BroadcastDropped() { broadcastDropped.Inc() }

// HTTPRequest records one served request. route is the registered path
// pattern, never the raw URL.
func HTTPRequest(method, route string, status int, took time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
