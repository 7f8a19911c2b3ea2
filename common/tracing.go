package common

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by the gateway, worker and vector
// services under a single tracer so a no-op or wired SDK provider behaves
// identically from the caller's perspective.
const TracerName = "scholaris/core"

// Tracer returns the package-wide tracer. With no SDK provider registered
// (the default), every span it creates is a no-op, so instrumentation can
// be added throughout the codebase without requiring an exporter to be
// configured for every deployment.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
