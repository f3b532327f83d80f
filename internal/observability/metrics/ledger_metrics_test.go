package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyLedgerReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: LedgerReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: LedgerReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: LedgerReasonSerializationFailure},
		{name: "deadlock", err: fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "40P01"}), want: LedgerReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: LedgerReasonUniqueViolation},
		{name: "other pg error", err: &pgconn.PgError{Code: "42P01"}, want: LedgerReasonDB},
		{name: "unknown", err: errors.New("boom"), want: LedgerReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyLedgerReason(tc.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(gorm.ErrDuplicatedKey))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestLedgerMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLedgerMetrics(registry, Config{ServiceName: "feeledger", Environment: "test"})

	m.IncTxRetry(LedgerOpCreatePayment, gorm.ErrDuplicatedKey)
	m.IncTxRetry(LedgerOpCreatePayment, gorm.ErrDuplicatedKey)
	m.IncTxError(LedgerOpCreatePayment, &pgconn.PgError{Code: "55P03"})
	m.IncAllocationRemainder()
	m.ObserveLockWait(LockResourceStudentLedger, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.txRetries.WithLabelValues(LedgerOpCreatePayment, LedgerReasonUniqueViolation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.txErrors.WithLabelValues(LedgerOpCreatePayment, LedgerReasonDBLockTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocRemainder))

	again := NewLedgerMetrics(registry, Config{ServiceName: "feeledger", Environment: "test"})
	again.IncAllocationRemainder()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.allocRemainder))
}

func TestLedgerMetricsConstLabelsAndLockWait(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLedgerMetrics(registry, Config{})
	m.ObserveLockWait(LockResourceStudentLedger, 20*time.Millisecond)
	m.ObserveLockWait(LockResourceStudentLedger, -time.Second)

	families, err := registry.Gather()
	if !assert.NoError(t, err) {
		return
	}

	var lockWait *dto.MetricFamily
	for _, family := range families {
		if family.GetName() == "feeledger_ledger_lock_wait_seconds" {
			lockWait = family
		}
	}
	if !assert.NotNil(t, lockWait) {
		return
	}
	assert.Equal(t, dto.MetricType_HISTOGRAM, lockWait.GetType())
	metric := lockWait.GetMetric()[0]
	assert.True(t, labelsMatch(metric, map[string]string{
		"service":  "feeledger",
		"env":      "unknown",
		"resource": LockResourceStudentLedger,
	}))
	assert.EqualValues(t, 2, metric.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.02, metric.GetHistogram().GetSampleSum(), 1e-9)
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, pair := range metric.GetLabel() {
		want, ok := labels[pair.GetName()]
		if !ok {
			continue
		}
		if pair.GetValue() != want {
			return false
		}
		found++
	}
	return found == len(labels)
}
