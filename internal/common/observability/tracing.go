package observability

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EnableTracing exports spans to a Jaeger collector endpoint such as
// http://jaeger:14268/api/traces.
func (o *Observability) EnableTracing(jaegerEndpoint string) error {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		return fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	o.useSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	return nil
}

func (o *Observability) useSpanProcessor(sp sdktrace.SpanProcessor) {
	res := resource.NewSchemaless(attribute.String("service.name", o.serviceName))

	o.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(o.tracerProvider)
}
