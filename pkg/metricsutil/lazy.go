package metricsutil

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MetricsGroup interface {
	RegisterMetrics(reg prometheus.Registerer)
}

// LazyMetrics registers a metrics group at most once, on first use. Tasks
// created repeatedly by the same factory share the registered group.
type LazyMetrics[T MetricsGroup] struct {
	init             sync.Once
	singleton        T
	metricsRegistrar prometheus.Registerer
}

func NewLazyMetrics[T MetricsGroup](
	group T,
	metricsRegistrar prometheus.Registerer,
) *LazyMetrics[T] {
	return &LazyMetrics[T]{
		singleton:        group,
		metricsRegistrar: metricsRegistrar,
	}
}

func (m *LazyMetrics[T]) WithRegistrar(r prometheus.Registerer) *LazyMetrics[T] {
	m.metricsRegistrar = r
	return m
}

func (m *LazyMetrics[T]) Register() T {
	m.init.Do(func() {
		if m.metricsRegistrar != nil {
			m.singleton.RegisterMetrics(m.metricsRegistrar)
		}
	})
	return m.singleton
}
