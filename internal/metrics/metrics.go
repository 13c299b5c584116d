package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upload results.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Analysis outcomes.
const (
	OutcomeAnalyzed = "analyzed"
	OutcomeFallback = "fallback"
)

// Observer captures telemetry for the upload and analysis pipelines.
type Observer interface {
	RecordUpload(duration time.Duration, sizeBytes int64, result string)
	RecordAnalysis(duration time.Duration, outcome string, cached bool)
}

type PrometheusObserver struct {
	uploads          *prometheus.CounterVec
	uploadDuration   prometheus.Histogram
	uploadBytes      prometheus.Counter
	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	cacheHits        prometheus.Counter
}

// NewPrometheusObserver registers the pipeline metrics on reg, reusing
// collectors that are already registered.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "skincare"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload attempts by result.",
		}, []string{"result"}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Latency of accept-upload calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes of accepted uploads.",
		}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analysis reports by outcome.",
		}, []string{"outcome"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Latency of analysis calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_cache_hits_total",
			Help:      "Analyses served from the dimension cache.",
		}),
	}

	var err error
	if o.uploads, err = register(reg, o.uploads); err != nil {
		return nil, err
	}
	if o.uploadDuration, err = register(reg, o.uploadDuration); err != nil {
		return nil, err
	}
	if o.uploadBytes, err = register(reg, o.uploadBytes); err != nil {
		return nil, err
	}
	if o.analyses, err = register(reg, o.analyses); err != nil {
		return nil, err
	}
	if o.analysisDuration, err = register(reg, o.analysisDuration); err != nil {
		return nil, err
	}
	if o.cacheHits, err = register(reg, o.cacheHits); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) RecordUpload(duration time.Duration, sizeBytes int64, result string) {
	if o == nil {
		return
	}
	o.uploads.WithLabelValues(result).Inc()
	o.uploadDuration.Observe(duration.Seconds())
	if result == ResultAccepted && sizeBytes > 0 {
		o.uploadBytes.Add(float64(sizeBytes))
	}
}

func (o *PrometheusObserver) RecordAnalysis(duration time.Duration, outcome string, cached bool) {
	if o == nil {
		return
	}
	o.analyses.WithLabelValues(outcome).Inc()
	o.analysisDuration.Observe(duration.Seconds())
	if cached {
		o.cacheHits.Inc()
	}
}

type nopObserver struct{}

// Nop returns an Observer that discards everything.
func Nop() Observer { return nopObserver{} }

func (nopObserver) RecordUpload(time.Duration, int64, string) {}

func (nopObserver) RecordAnalysis(time.Duration, string, bool) {}
