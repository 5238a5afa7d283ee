package diffgraph

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting construction
// metrics. Implement this interface to integrate with monitoring
// systems like Prometheus.
type MetricsCollector interface {
	// RecordKernelBuild is called after the kernel matrix is built.
	// n is the point count, err is nil if successful.
	RecordKernelBuild(n int, duration time.Duration, err error)

	// RecordOperatorBuild is called after the diffusion operator is
	// derived from the kernel.
	RecordOperatorBuild(duration time.Duration, err error)

	// RecordLandmarkBuild is called after the landmark reduction.
	// landmarks is the landmark count.
	RecordLandmarkBuild(landmarks int, duration time.Duration, err error)

	// RecordExtension is called after each out-of-sample extension.
	// points is the number of new points extended onto the graph.
	RecordExtension(points int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordKernelBuild(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordOperatorBuild(time.Duration, error)      {}
func (NoopMetricsCollector) RecordLandmarkBuild(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordExtension(int, time.Duration, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external
// dependencies.
type BasicMetricsCollector struct {
	KernelBuilds        atomic.Int64
	KernelBuildErrors   atomic.Int64
	KernelBuildNanos    atomic.Int64
	OperatorBuilds      atomic.Int64
	OperatorBuildErrors atomic.Int64
	LandmarkBuilds      atomic.Int64
	LandmarkBuildErrors atomic.Int64
	Extensions          atomic.Int64
	ExtensionErrors     atomic.Int64
	ExtensionPoints     atomic.Int64
}

// RecordKernelBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordKernelBuild(n int, duration time.Duration, err error) {
	b.KernelBuilds.Add(1)
	b.KernelBuildNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.KernelBuildErrors.Add(1)
	}
}

// RecordOperatorBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOperatorBuild(duration time.Duration, err error) {
	b.OperatorBuilds.Add(1)
	if err != nil {
		b.OperatorBuildErrors.Add(1)
	}
}

// RecordLandmarkBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLandmarkBuild(landmarks int, duration time.Duration, err error) {
	b.LandmarkBuilds.Add(1)
	if err != nil {
		b.LandmarkBuildErrors.Add(1)
	}
}

// RecordExtension implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExtension(points int, duration time.Duration, err error) {
	b.Extensions.Add(1)
	b.ExtensionPoints.Add(int64(points))
	if err != nil {
		b.ExtensionErrors.Add(1)
	}
}
