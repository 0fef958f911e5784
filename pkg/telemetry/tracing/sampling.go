package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// createSampler builds the root sampler from a ratio.
//
// A ratio of 1 samples every trace and 0 samples none. Anything in between
// uses TraceIDRatioBased, so the decision is stable per trace ID across
// services.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sample_ratio: 0.1
//
// The result is wrapped in ParentBased: an incoming traceparent decides for
// the whole trace and the ratio only applies to new roots.
func createSampler(ratio float64) (sdktrace.Sampler, error) {
	if ratio < 0.0 || ratio > 1.0 {
		return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
	}

	var base sdktrace.Sampler
	switch ratio {
	case 1.0:
		base = sdktrace.AlwaysSample()
	case 0.0:
		base = sdktrace.NeverSample()
	default:
		base = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(base), nil
}
