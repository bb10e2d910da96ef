package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeGenerated = "generated"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Payroll holds the salary generation collectors. A nil *Payroll is a no-op recorder.
type Payroll struct {
	generations   *prometheus.CounterVec
	formulaErrors prometheus.Counter
	batchDuration prometheus.Histogram
}

func NewPayroll(reg prometheus.Registerer) *Payroll {
	m := &Payroll{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salary_generation_total",
			Help: "Salary generation attempts per employee by outcome.",
		}, []string{"outcome"}),
		formulaErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salary_formula_errors_total",
			Help: "Formula components that failed to evaluate and were treated as zero.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "salary_generation_batch_seconds",
			Help:    "Wall time of a salary generation batch.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	reg.MustRegister(m.generations, m.formulaErrors, m.batchDuration)
	return m
}

func (m *Payroll) AddGenerations(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.generations.WithLabelValues(outcome).Add(float64(n))
}

func (m *Payroll) FormulaError() {
	if m == nil {
		return
	}
	m.formulaErrors.Inc()
}

func (m *Payroll) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
