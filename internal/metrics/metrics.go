package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "sales_total",
		Help:      "Sale attempts by outcome.",
	}, []string{"outcome"})

	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "reservations_total",
		Help:      "Reservation transitions by result.",
	}, []string{"result"})

	CompensationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "compensations_total",
		Help:      "Sales that ran compensation.",
	})

	ConsistencyDriftTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "consistency_drift_total",
		Help:      "Ledger and cached on-hand divergences detected.",
	})
)
