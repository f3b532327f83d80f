package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	LedgerReasonDeadlineExceeded     = "deadline_exceeded"
	LedgerReasonDBLockTimeout        = "db_lock_timeout"
	LedgerReasonSerializationFailure = "serialization_failure"
	LedgerReasonUniqueViolation      = "unique_violation"
	LedgerReasonDB                   = "db"
	LedgerReasonUnknown              = "unknown"
)

const (
	LockResourceStudentLedger   = "student_ledger"
	LockResourceReceiptSequence = "receipt_sequence"
	LockResourceDistributed     = "distributed_student"
)

const (
	LedgerOpCreatePayment = "create_payment"
	LedgerOpStatus        = "status"
	LedgerOpMarkRame      = "mark_rame"
)

// LedgerMetrics captures payment transaction health on the Prometheus registry.
type LedgerMetrics struct {
	txDuration     *prometheus.HistogramVec
	txErrors       *prometheus.CounterVec
	txRetries      *prometheus.CounterVec
	lockWait       *prometheus.HistogramVec
	allocRemainder prometheus.Counter
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

// Ledger returns the singleton ledger metrics registered on the default registerer.
func Ledger() *LedgerMetrics {
	return LedgerWithConfig(Config{})
}

func LedgerWithConfig(cfg Config) *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = newLedgerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ledgerMetrics
}

// NewLedgerMetrics registers ledger metrics on the given registerer. Tests use a fresh registry.
func NewLedgerMetrics(registerer prometheus.Registerer, cfg Config) *LedgerMetrics {
	return newLedgerMetrics(registerer, cfg)
}

func newLedgerMetrics(registerer prometheus.Registerer, cfg Config) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "feeledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "feeledger_ledger_tx_duration_seconds",
		Help:        "Ledger transaction latency by operation.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"op"})
	txErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "feeledger_ledger_tx_errors_total",
		Help:        "Ledger transaction infrastructure errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"op", "reason"})
	txRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "feeledger_ledger_tx_retries_total",
		Help:        "Ledger transactions retried after a retryable conflict.",
		ConstLabels: constLabels,
	}, []string{"op", "reason"})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "feeledger_ledger_lock_wait_seconds",
		Help:        "Time spent acquiring ledger locks.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"resource"})
	allocRemainder := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "feeledger_allocation_remainder_total",
		Help:        "Allocations that ended with an unallocated remainder.",
		ConstLabels: constLabels,
	})

	txDuration = registerCollector(registerer, txDuration).(*prometheus.HistogramVec)
	txErrors = registerCollector(registerer, txErrors).(*prometheus.CounterVec)
	txRetries = registerCollector(registerer, txRetries).(*prometheus.CounterVec)
	lockWait = registerCollector(registerer, lockWait).(*prometheus.HistogramVec)
	allocRemainder = registerCollector(registerer, allocRemainder).(prometheus.Counter)

	return &LedgerMetrics{
		txDuration:     txDuration,
		txErrors:       txErrors,
		txRetries:      txRetries,
		lockWait:       lockWait,
		allocRemainder: allocRemainder,
	}
}

func registerCollector(registerer prometheus.Registerer, collector prometheus.Collector) prometheus.Collector {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector
		}
	}
	return collector
}

func (m *LedgerMetrics) ObserveTx(op string, duration time.Duration) {
	if m == nil || m.txDuration == nil {
		return
	}
	m.txDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// IncTxError records an infrastructure failure. Business rejections are counted elsewhere.
func (m *LedgerMetrics) IncTxError(op string, err error) {
	if m == nil || err == nil || m.txErrors == nil {
		return
	}
	m.txErrors.WithLabelValues(op, ClassifyLedgerReason(err)).Inc()
}

func (m *LedgerMetrics) IncTxRetry(op string, err error) {
	if m == nil || m.txRetries == nil {
		return
	}
	m.txRetries.WithLabelValues(op, ClassifyLedgerReason(err)).Inc()
}

// ObserveLockWait records the time spent waiting on a row or distributed lock.
func (m *LedgerMetrics) ObserveLockWait(resource string, duration time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.lockWait.WithLabelValues(resource).Observe(duration.Seconds())
}

func (m *LedgerMetrics) IncAllocationRemainder() {
	if m == nil || m.allocRemainder == nil {
		return
	}
	m.allocRemainder.Inc()
}

// ClassifyLedgerReason maps an error to a bounded label value.
func ClassifyLedgerReason(err error) string {
	switch {
	case err == nil:
		return LedgerReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return LedgerReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return LedgerReasonDBLockTimeout
	case hasPGCode(err, "40001"), hasPGCode(err, "40P01"):
		return LedgerReasonSerializationFailure
	case isUniqueViolation(err):
		return LedgerReasonUniqueViolation
	case isDBError(err):
		return LedgerReasonDB
	default:
		return LedgerReasonUnknown
	}
}

// IsRetryable reports whether a ledger transaction may be retried as a whole.
func IsRetryable(err error) bool {
	switch ClassifyLedgerReason(err) {
	case LedgerReasonSerializationFailure, LedgerReasonUniqueViolation:
		return true
	default:
		return false
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true
	}
	return errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidValue)
}
