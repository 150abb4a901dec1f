package metrics

import (
	"strconv"
	"time"
)

// Metric names exported by the ArtAtlas services.
const (
	RequestsTotal          = "artatlas_requests_total"
	RequestDurationSeconds = "artatlas_request_duration_seconds"
	BlocksEmittedTotal     = "artatlas_blocks_emitted_total"
	ConceptsSkippedTotal   = "artatlas_concepts_skipped_total"
	ArtworksDroppedTotal   = "artatlas_artworks_dropped_total"
	GraphWarningsTotal     = "artatlas_graph_warnings_total"
	GraphErrorsTotal       = "artatlas_graph_errors_total"
	BackendDurationSeconds = "artatlas_backend_duration_seconds"
	BreakerState           = "artatlas_backend_breaker_state"
)

// Set records ArtAtlas metrics into a Registry.
type Set struct {
	reg *Registry
}

// NewSet wraps reg; a nil reg gets a fresh Registry.
func NewSet(reg *Registry) *Set {
	if reg == nil {
		reg = New()
	}
	return &Set{reg: reg}
}

// Registry returns the underlying registry.
func (s *Set) Registry() *Registry { return s.reg }

// Request records one HTTP request.
func (s *Set) Request(route string, status int, d time.Duration) {
	s.reg.Counter(WithLabels(RequestsTotal, "route", route, "status", strconv.Itoa(status)), "HTTP requests by route and status.").Inc()
	s.reg.Histogram(WithLabels(RequestDurationSeconds, "route", route), "HTTP request latency.", nil).Observe(d.Seconds())
}

// Resolution records the outcome of one resolver pass.
func (s *Set) Resolution(blocks, conceptsSkipped, artworksDropped, graphErrors, graphWarnings int) {
	s.reg.Counter(BlocksEmittedTotal, "Explanation blocks emitted.").Add(int64(blocks))
	s.reg.Counter(ConceptsSkippedTotal, "Concept nodes omitted from the explanation.").Add(int64(conceptsSkipped))
	s.reg.Counter(ArtworksDroppedTotal, "Supporting artworks that could not be resolved.").Add(int64(artworksDropped))
	s.reg.Counter(GraphErrorsTotal, "Structural errors found in backend explanation graphs.").Add(int64(graphErrors))
	s.reg.Counter(GraphWarningsTotal, "Structural warnings found in backend explanation graphs.").Add(int64(graphWarnings))
}

// Backend records one search backend call. outcome is "ok", "error" or
// "rejected".
func (s *Set) Backend(outcome string, d time.Duration) {
	s.reg.Histogram(WithLabels(BackendDurationSeconds, "outcome", outcome), "Search backend call latency.", nil).Observe(d.Seconds())
}

// Breaker records the backend circuit breaker state (0 closed, 1 open,
// 2 half-open).
func (s *Set) Breaker(state int) {
	s.reg.Gauge(BreakerState, "Search backend circuit breaker state.").Set(int64(state))
}
