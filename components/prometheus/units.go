package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	unitsLoaded *prometheus.GaugeVec
	unitNodes   *prometheus.GaugeVec
)

func configureUnits() {
	unitsLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nodescript",
			Subsystem: "registry",
			Name:      "units",
			Help:      "Number of compiled units in the session.",
		},
		[]string{"version"},
	)

	unitNodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nodescript",
			Subsystem: "registry",
			Name:      "unit_nodes",
			Help:      "Number of nodes declared by a compiled unit.",
		},
		[]string{"unit"},
	)

	registry.MustRegister(unitsLoaded)
	registry.MustRegister(unitNodes)

	addCollect(collectUnits)
}

func collectUnits() {
	unitsLoaded.Reset()
	unitNodes.Reset()

	for _, name := range deps.UnitRegistry.Units() {
		engine, ok := deps.UnitRegistry.Engine(name)
		if !ok || engine.Unit() == nil {
			continue
		}
		unit := engine.Unit()
		unitsLoaded.WithLabelValues(unit.Version).Inc()
		unitNodes.WithLabelValues(name).Set(float64(len(unit.Nodes())))
	}
}
