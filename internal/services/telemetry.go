package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/hanko-field/catalog/internal/services"

var tracer = otel.Tracer(instrumentationName)

type productMetrics struct {
	operations metric.Int64Counter
}

func newProductMetrics() productMetrics {
	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"catalog.product.operations",
		metric.WithDescription("Product service operations by name and outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return productMetrics{operations: counter}
}

// observe starts a span for op and returns a finisher that records the outcome.
func (m productMetrics) observe(ctx context.Context, op, shopID string) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, "ProductService."+op, trace.WithAttributes(
		attribute.String("catalog.shop_id", shopID),
	))
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		outcome := outcomeOf(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if m.operations != nil {
			m.operations.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", op),
				attribute.String("outcome", outcome),
			))
		}
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProductInvalidInput):
		return "invalid"
	case errors.Is(err, ErrProductPermissionDenied):
		return "denied"
	case errors.Is(err, ErrProductNotFound):
		return "not_found"
	default:
		return "error"
	}
}
