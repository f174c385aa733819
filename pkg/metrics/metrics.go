// Package metrics exposes Prometheus collectors for sizing and allocation
// runs.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/newtron-network/fabricplan/pkg/allocator"
	"github.com/newtron-network/fabricplan/pkg/topology"
)

// Operation label values.
const (
	OpDerive        = "derive"
	OpAllocate      = "allocate"
	OpAllocateMulti = "allocate_multi"
	OpAudit         = "audit"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
)

// Collector bundles the engine's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Operations   *prometheus.CounterVec
	Durations    *prometheus.HistogramVec
	Issues       *prometheus.CounterVec
	Guards       *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
	LastSpines   prometheus.Gauge
	LastLeaves   prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice against one registry returns the
// already registered collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	operations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricplan_operations_total",
		Help: "Engine invocations, labeled by operation and outcome.",
	}, []string{"operation", "outcome"}), "fabricplan_operations_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fabricplan_operation_duration_seconds",
		Help:    "Engine invocation latency in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}, []string{"operation"}), "fabricplan_operation_duration_seconds")
	if err != nil {
		return nil, err
	}

	issues, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricplan_allocation_issues_total",
		Help: "Allocation issues reported, labeled by kind.",
	}, []string{"kind"}), "fabricplan_allocation_issues_total")
	if err != nil {
		return nil, err
	}

	guards, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricplan_guards_total",
		Help: "Structural guards raised by topology derivation, labeled by guard type.",
	}, []string{"guard_type"}), "fabricplan_guards_total")
	if err != nil {
		return nil, err
	}

	httpRequests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricplan_http_requests_total",
		Help: "HTTP API requests, labeled by route and status code.",
	}, []string{"route", "code"}), "fabricplan_http_requests_total")
	if err != nil {
		return nil, err
	}

	spines, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fabricplan_last_spines_needed",
		Help: "Spine count of the most recent derivation.",
	}), "fabricplan_last_spines_needed")
	if err != nil {
		return nil, err
	}
	leaves, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fabricplan_last_leaves_needed",
		Help: "Leaf count of the most recent derivation.",
	}), "fabricplan_last_leaves_needed")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:     gatherer,
		Operations:   operations,
		Durations:    durations,
		Issues:       issues,
		Guards:       guards,
		HTTPRequests: httpRequests,
		LastSpines:   spines,
		LastLeaves:   leaves,
	}, nil
}

// ObserveDerive records a topology derivation.
func (c *Collector) ObserveDerive(t *topology.DerivedTopology, took time.Duration) {
	if c == nil || t == nil {
		return
	}
	outcome := OutcomeOK
	if !t.IsValid {
		outcome = OutcomeInvalid
	}
	c.observe(OpDerive, outcome, took)
	for _, g := range t.Guards {
		c.Guards.WithLabelValues(string(g.GuardType())).Inc()
	}
	c.LastSpines.Set(float64(t.SpinesNeeded))
	c.LastLeaves.Set(float64(t.LeavesNeeded))
}

// ObserveAllocation records an allocation run and its issues by kind.
func (c *Collector) ObserveAllocation(op string, issues allocator.Issues, took time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if !issues.OK() {
		outcome = OutcomeInvalid
	}
	c.observe(op, outcome, took)
	for _, i := range issues {
		kind := string(i.Kind)
		if kind == "" {
			kind = "unknown"
		}
		c.Issues.WithLabelValues(kind).Inc()
	}
}

// ObserveAudit records an audit run; problems is the number of violations
// found.
func (c *Collector) ObserveAudit(problems int, took time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if problems > 0 {
		outcome = OutcomeInvalid
	}
	c.observe(OpAudit, outcome, took)
}

// ObserveHTTP counts one API request.
func (c *Collector) ObserveHTTP(route string, code int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (c *Collector) observe(op, outcome string, took time.Duration) {
	c.Operations.WithLabelValues(op, outcome).Inc()
	c.Durations.WithLabelValues(op).Observe(took.Seconds())
}

// Handler exposes a /metrics handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// register adds c to reg, returning the existing collector when one of the
// same type is already registered under name.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var zero T
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return c, nil
}
