// Package observability provides metrics and logging utilities.
package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrEngine  = "engine"
	attrSuccess = "success"
)

func engineAttr(engine string) attribute.KeyValue {
	return attribute.String(attrEngine, engine)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

// WithEngine returns a metric option with the engine attribute.
func WithEngine(engine string) metric.MeasurementOption {
	return metric.WithAttributes(engineAttr(engine))
}

// WithSuccess returns a metric option with the success attribute.
func WithSuccess(success bool) metric.MeasurementOption {
	return metric.WithAttributes(successAttr(success))
}
