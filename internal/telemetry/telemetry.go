// Package telemetry provides Prometheus metrics and tracing for the milkmob service.
package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "milkmob"

// Metrics holds all milkmob Prometheus metrics.
type Metrics struct {
	TagsDetected           *prometheus.CounterVec
	Validations            *prometheus.CounterVec
	Classifications        *prometheus.CounterVec
	ClassificationDuration prometheus.Histogram
	Submissions            *prometheus.CounterVec
	SubmissionDuration     prometheus.Histogram
	AnalysisRequests       *prometheus.CounterVec
	CategoryMembers        *prometheus.GaugeVec
	ReweightRuns           *prometheus.CounterVec
}

// Provider wraps the tracer and a private metrics registry. Methods are
// safe to call on a nil Provider.
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	registry *prometheus.Registry
}

// NewProvider registers every metric on a fresh registry.
func NewProvider() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  initMetrics(promauto.With(reg)),
		registry: reg,
	}
}

// Handler serves the registry for /metrics.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func initMetrics(f promauto.Factory) *Metrics {
	return &Metrics{
		TagsDetected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkmob_tag_detections_total",
			Help: "Tag detections by whether campaign tags were found",
		}, []string{"campaign"}),
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkmob_validations_total",
			Help: "Validation verdicts by outcome (valid, invalid, error)",
		}, []string{"outcome"}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkmob_classifications_total",
			Help: "Classifications by assigned category and fallback flag",
		}, []string{"category", "fallback"}),
		ClassificationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "milkmob_classification_duration_seconds",
			Help:    "Time to classify one analysis record, including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkmob_submissions_total",
			Help: "Processed submissions by final status",
		}, []string{"status"}),
		SubmissionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "milkmob_submission_duration_seconds",
			Help:    "End-to-end submission processing time",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		AnalysisRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkmob_analysis_requests_total",
			Help: "Requests to the video analysis service by operation and result",
		}, []string{"operation", "result"}),
		CategoryMembers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "milkmob_category_members",
			Help: "Current member count per Milk Mob",
		}, []string{"category"}),
		ReweightRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "milkmob_reweight_runs_total",
			Help: "Keyword reweighting job runs by result",
		}, []string{"result"}),
	}
}

// RecordTagDetection counts one detection.
func (p *Provider) RecordTagDetection(campaign bool) {
	if p == nil {
		return
	}
	p.Metrics.TagsDetected.WithLabelValues(strconv.FormatBool(campaign)).Inc()
}

// RecordValidation counts one verdict.
func (p *Provider) RecordValidation(outcome string) {
	if p == nil {
		return
	}
	p.Metrics.Validations.WithLabelValues(outcome).Inc()
}

// RecordClassification counts one assignment and observes its duration.
func (p *Provider) RecordClassification(category string, fallback bool, d time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.Classifications.WithLabelValues(category, strconv.FormatBool(fallback)).Inc()
	p.Metrics.ClassificationDuration.Observe(d.Seconds())
}

// RecordSubmission counts one processed submission.
func (p *Provider) RecordSubmission(status string, d time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.Submissions.WithLabelValues(status).Inc()
	p.Metrics.SubmissionDuration.Observe(d.Seconds())
}

// RecordAnalysisRequest counts one external request.
func (p *Provider) RecordAnalysisRequest(operation string, err error) {
	if p == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.Metrics.AnalysisRequests.WithLabelValues(operation, result).Inc()
}

// SetCategoryMembers publishes the current member count of a category.
func (p *Provider) SetCategoryMembers(category string, count int) {
	if p == nil {
		return
	}
	p.Metrics.CategoryMembers.WithLabelValues(category).Set(float64(count))
}

// RecordReweight counts one reweighting run.
func (p *Provider) RecordReweight(err error) {
	if p == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.Metrics.ReweightRuns.WithLabelValues(result).Inc()
}

// StartSpan starts a new trace span. On a nil Provider the span from ctx
// (a no-op span when none is active) is returned.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p == nil || p.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
