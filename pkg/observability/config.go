package observability

import "log/slog"

// defaultShutdownTimeoutSec bounds how long Init's Shutdown waits for
// pending spans and metrics to flush.
const defaultShutdownTimeoutSec = 5

// AppMode names the process shape a binary is running as, surfaced as a
// log attribute and a resource attribute on every exported span.
type AppMode string

const (
	// ModeCLI is a one-shot command-line invocation (ingest, estimate, compare).
	ModeCLI AppMode = "cli"

	// ModeServer is the long-running HTTP ingest/metrics endpoint.
	ModeServer AppMode = "server"
)

// Config configures Init. Zero value is not directly usable; start from
// DefaultConfig.
type Config struct {
	// ServiceName identifies this process in traces, metrics, and logs.
	ServiceName string

	// ServiceVersion is attached as a resource attribute when non-empty.
	ServiceVersion string

	// Environment (e.g. "dev", "staging", "prod") is attached as a
	// resource attribute when non-empty.
	Environment string

	// Mode is the running binary's shape (see AppMode).
	Mode AppMode

	// LogLevel is the minimum slog level emitted.
	LogLevel slog.Level

	// LogJSON selects JSON log output; otherwise text.
	LogJSON bool

	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables
	// tracing/metrics export in favor of no-op providers.
	OTLPEndpoint string

	// OTLPInsecure disables TLS on the OTLP gRPC connection.
	OTLPInsecure bool

	// OTLPHeaders are additional gRPC metadata headers sent with every
	// OTLP export (e.g. authentication).
	OTLPHeaders map[string]string

	// DebugTrace forces always-on sampling and logs filtered span
	// attributes, overriding OTEL_TRACES_SAMPLER.
	DebugTrace bool

	// TraceVerbose disables the PII attribute filter on exported spans.
	TraceVerbose bool

	// SampleRatio is used by the default parent-based TraceIDRatio
	// sampler when no OTEL_TRACES_SAMPLER env var is set and > 0.
	SampleRatio float64

	// ShutdownTimeoutSec bounds Init's returned Shutdown function.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config suitable for local CLI runs: no OTLP
// export, info-level text logging to stderr, CLI mode.
func DefaultConfig() Config {
	return Config{
		ServiceName:        "privsketch",
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
