package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes fee ledger instruments.
type Metrics struct {
	paymentsCommitted metric.Int64Counter
	allocationLines   metric.Int64Counter
	paymentsRejected  metric.Int64Counter
	receiptRetries    metric.Int64Counter
	rameMarked        metric.Int64Counter
	amountCollected   metric.Float64Counter
	httpRequests      metric.Int64Counter
	httpDuration      metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "feeledger"
	}
	meter := provider.Meter(name)

	paymentsCommitted, err := meter.Int64Counter("feeledger_payments_committed_total")
	if err != nil {
		return nil, err
	}
	allocationLines, err := meter.Int64Counter("feeledger_allocation_lines_total")
	if err != nil {
		return nil, err
	}
	paymentsRejected, err := meter.Int64Counter("feeledger_payments_rejected_total")
	if err != nil {
		return nil, err
	}
	receiptRetries, err := meter.Int64Counter("feeledger_receipt_number_retries_total")
	if err != nil {
		return nil, err
	}
	rameMarked, err := meter.Int64Counter("feeledger_rame_marked_total")
	if err != nil {
		return nil, err
	}
	amountCollected, err := meter.Float64Counter("feeledger_amount_collected_total")
	if err != nil {
		return nil, err
	}
	httpRequests, err := meter.Int64Counter("feeledger_http_requests_total")
	if err != nil {
		return nil, err
	}
	httpDuration, err := meter.Float64Histogram("feeledger_http_request_duration_seconds", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		paymentsCommitted: paymentsCommitted,
		allocationLines:   allocationLines,
		paymentsRejected:  paymentsRejected,
		receiptRetries:    receiptRetries,
		rameMarked:        rameMarked,
		amountCollected:   amountCollected,
		httpRequests:      httpRequests,
		httpDuration:      httpDuration,
	}, nil
}

// RecordPaymentCommitted counts a committed payment, its allocation lines and the collected amount.
func (m *Metrics) RecordPaymentCommitted(ctx context.Context, paymentType, method string, lines int, amount float64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("payment_type", strings.TrimSpace(paymentType)),
		attribute.String("payment_method", strings.TrimSpace(method)),
	)
	m.paymentsCommitted.Add(ctx, 1, metric.WithAttributes(attrs...))
	if lines > 0 {
		m.allocationLines.Add(ctx, int64(lines), metric.WithAttributes(attrs...))
	}
	if amount > 0 {
		m.amountCollected.Add(ctx, amount, metric.WithAttributes(attrs...))
	}
}

// RecordPaymentRejected counts a payment refused before commit.
func (m *Metrics) RecordPaymentRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.paymentsRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordReceiptRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.receiptRetries.Add(ctx, 1)
}

// RecordRameMarked counts RAME transitions, source is "manual" or "payment".
func (m *Metrics) RecordRameMarked(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.rameMarked.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"payment_type":   {},
	"payment_method": {},
	"endpoint":       {},
	"status_code":    {},
	"source":         {},
	"reason":         {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
