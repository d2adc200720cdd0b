package flowvia

import (
	"github.com/viant/afs/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/flowvia/flowvia/model/types"
	"github.com/flowvia/flowvia/progress"
	"github.com/flowvia/flowvia/service/event"
	"github.com/flowvia/flowvia/service/state"
	"github.com/flowvia/flowvia/tracing"
)

// Option customises the flowvia service.
type Option func(s *Service)

// WithConfig applies a full configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithEventService sets the event bus.
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.eventService = service
	}
}

// WithStateStore sets the state store backend.
func WithStateStore(store state.Store) Option {
	return func(s *Service) {
		s.stateStore = store
	}
}

// WithStateBaseURL switches state persistence to the filesystem store rooted
// at the given location.
func WithStateBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.config.StateBaseURL = baseURL
	}
}

// WithAgent registers an agent executor under the given agent type.
func WithAgent(agentType string, executor types.Executor) Option {
	return func(s *Service) {
		s.agents[agentType] = executor
	}
}

// WithDefinitionFsOptions supplies filesystem options passed to definition
// loads, e.g. an embedded filesystem.
func WithDefinitionFsOptions(options ...storage.Option) Option {
	return func(s *Service) {
		s.definitionFsOpts = options
	}
}

// WithProgressListener registers a callback invoked on every progress
// counter change.
func WithProgressListener(listener func(progress.Progress)) Option {
	return func(s *Service) {
		s.progressListener = listener
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The function is
// safe to call multiple times – the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter. This enables
// integrations with exporters other than the built-in stdout exporter, for example OTLP, Jaeger or
// Zipkin. The function is safe to call multiple times – the first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
