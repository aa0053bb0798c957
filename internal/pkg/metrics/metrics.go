// Package metrics defines and registers the custom Prometheus metrics of the
// account service. It is the single source of truth for metric names, labels
// and help strings.
//
// Metrics register with the default Prometheus registry on package init, so
// importing the package is enough; /metrics serves them alongside the HTTP
// metrics collected by echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accounts"

// ── Registration ─────────────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Labels:
//   - path: "caller_key" (RegisterUser) or "generated_key" (RegisterNewUser)
//   - result: "created", "duplicate_key", "duplicate_email", "invalid", "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by path and result.",
	},
	[]string{"path", "result"},
)

// ── Activation ───────────────────────────────────────────────────────────────

// ActivationsTotal counts activation attempts.
// Label:
//   - outcome: "activated", "invalid_credentials", "already_activated", "key_expired", "error"
var ActivationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activations_total",
		Help:      "Total number of activation attempts, by outcome.",
	},
	[]string{"outcome"},
)

// ── Administration ───────────────────────────────────────────────────────────

// AdminOperationsTotal counts administrative mutations.
// Labels:
//   - operation: "reset_key", "deactivate", "delete"
//   - result: "ok", "not_found", "unchanged", "duplicate_key", "invalid", "error"
var AdminOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_operations_total",
		Help:      "Total number of administrative account operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// ── Key delivery ─────────────────────────────────────────────────────────────

// KeyDeliveriesTotal counts key-issued events handed to the delivery stream.
// Label:
//   - result: "published" or "failed"
var KeyDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "key_deliveries_total",
		Help:      "Total number of issued keys handed to the delivery stream, by result.",
	},
	[]string{"result"},
)

// KeyDeliveryQueueDepth tracks the number of events waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var KeyDeliveryQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "key_delivery_queue_depth",
		Help:      "Current number of key-issued events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// StoreOperationDuration measures document store round-trips issued by the service.
// Label:
//   - operation: repository method name (e.g. "find_by_credentials")
var StoreOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_operation_duration_seconds",
		Help:      "Duration of account store operations.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)
