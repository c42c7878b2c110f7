package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/iamwavecut/modbot"

var (
	verdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_verdicts_total",
			Help: "Messages classified as violations, by reason",
		},
		[]string{"reason"},
	)

	consequencesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_consequences_total",
			Help: "Moderation consequences applied, by kind",
		},
		[]string{"kind"},
	)

	chatClientErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_chat_client_errors_total",
			Help: "Failed chat client calls, by operation",
		},
		[]string{"operation"},
	)

	storeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_store_errors_total",
			Help: "Registry store failures, by stage",
		},
		[]string{"stage"},
	)

	enforcementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modbot_enforcement_duration_seconds",
			Help:    "Time spent enforcing rules on one message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func RecordVerdict(reason string) {
	verdictsTotal.WithLabelValues(reason).Inc()
}

// RecordConsequence counts warn, ban, unban and block outcomes.
func RecordConsequence(kind string) {
	consequencesTotal.WithLabelValues(kind).Inc()
}

func RecordChatClientError(operation string) {
	chatClientErrorsTotal.WithLabelValues(operation).Inc()
}

func RecordStoreError(stage string) {
	storeErrorsTotal.WithLabelValues(stage).Inc()
}

// StartEnforcement returns a function that records the elapsed time under
// the given outcome label.
func StartEnforcement() func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		enforcementDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
}

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Server exposes /metrics and owns the tracer provider. It is a lifecycle
// component.
type Server struct {
	addr     string
	server   *http.Server
	provider *sdktrace.TracerProvider
	wg       sync.WaitGroup
	logger   *log.Entry
}

func NewServer(addr string) *Server {
	return &Server{
		addr:   addr,
		logger: log.WithField("object", "ObservabilityServer"),
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.provider = sdktrace.NewTracerProvider()
	otel.SetTracerProvider(s.provider)

	if s.addr == "" {
		s.logger.Info("metrics endpoint disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("error", err.Error()).Error("metrics server failed")
		}
	}()
	s.logger.WithField("addr", s.addr).Info("metrics endpoint started")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	var stopErr error
	if s.server != nil {
		stopErr = s.server.Shutdown(ctx)
		s.wg.Wait()
	}
	if s.provider != nil {
		stopErr = errors.Join(stopErr, s.provider.Shutdown(ctx))
	}
	return stopErr
}
