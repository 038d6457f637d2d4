package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "imelt"

// Outcome labels for actions.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// UnknownAction labels requests for unregistered action types, keeping the label set bounded.
const UnknownAction = "unknown"

var (
	simulationTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_ticks_total",
			Help:      "Total number of simulation ticks applied across all heats.",
		},
	)

	scenariosTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Injected scenarios, partitioned by scenario id.",
		},
		[]string{"scenario"},
	)

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Executed operator actions, partitioned by action type and outcome.",
		},
		[]string{"action", "outcome"},
	)

	insightsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_total",
			Help:      "Generated insights, partitioned by mode and whether the AI path fell back.",
		},
		[]string{"mode", "fallback"},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Currently connected WebSocket clients.",
		},
	)
)

// Register attaches the collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		simulationTicksTotal,
		scenariosTotal,
		actionsTotal,
		insightsTotal,
		wsClients,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveTick counts one tick of n heats.
func ObserveTick(n int) {
	if n > 0 {
		simulationTicksTotal.Add(float64(n))
	}
}

func ObserveScenario(scenario string) {
	scenariosTotal.WithLabelValues(scenario).Inc()
}

func ObserveAction(action string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	actionsTotal.WithLabelValues(action, outcome).Inc()
}

func ObserveInsight(mode string, fallback bool) {
	insightsTotal.WithLabelValues(mode, strconv.FormatBool(fallback)).Inc()
}

// WSConnected adjusts the connected-clients gauge by +1 or -1.
func WSConnected(connected bool) {
	if connected {
		wsClients.Inc()
		return
	}
	wsClients.Dec()
}
