package echo

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "netube"
	metricsSubsystem = "echo"
)

type metrics struct {
	accepted     prometheus.Counter
	active       prometheus.Gauge
	closed       *prometheus.CounterVec
	echoed       prometheus.Counter
	decodeErrors prometheus.Counter
}

// newMetrics - registers server collectors. Collectors registered already
// by another server with the same registerer are shared.
func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	accepted, err := register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "connections_accepted_total",
		Help:      "Total number of accepted connections",
	}))
	if err != nil {
		return nil, err
	}
	active, err := register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "sessions_active",
		Help:      "Number of currently served sessions",
	}))
	if err != nil {
		return nil, err
	}
	closed, err := register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "sessions_closed_total",
		Help:      "Total number of closed sessions by reason",
	}, []string{"reason"}))
	if err != nil {
		return nil, err
	}
	echoed, err := register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "messages_echoed_total",
		Help:      "Total number of echoed messages",
	}))
	if err != nil {
		return nil, err
	}
	decodeErrors, err := register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "decode_errors_total",
		Help:      "Total number of received chunks which are not valid UTF-8 text",
	}))
	if err != nil {
		return nil, err
	}

	return &metrics{
		accepted:     accepted.(prometheus.Counter),
		active:       active.(prometheus.Gauge),
		closed:       closed.(*prometheus.CounterVec),
		echoed:       echoed.(prometheus.Counter),
		decodeErrors: decodeErrors.(prometheus.Counter),
	}, nil
}

func register(registerer prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if err := registerer.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}
