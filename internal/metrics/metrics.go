// Package metrics holds the process Prometheus counters and the stats listener that serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "carescope"

var (
	// HTTPRequests counts API requests by route template, method and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "The total number of API requests",
	}, []string{"route", "method", "code"})

	// LoginAttempts counts logins by outcome (success, failure).
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "The total number of login attempts",
	}, []string{"outcome"})

	// AccessDenials counts guard rejections by reason.
	AccessDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "access",
		Name:      "denials_total",
		Help:      "The total number of requests rejected by the access guard",
	}, []string{"reason"})

	// RiskRecomputations counts risk recomputations by resulting tier.
	RiskRecomputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "risk",
		Name:      "recomputations_total",
		Help:      "The total number of customer risk recomputations",
	}, []string{"tier"})

	// EnrollmentDecisions counts enrollment attempts by outcome (accepted, rejected).
	EnrollmentDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrollment",
		Name:      "decisions_total",
		Help:      "The total number of enrollment attempts",
	}, []string{"outcome"})

	// OverdueMarked counts payments moved to overdue by the sweep.
	OverdueMarked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "overdue_marked_total",
		Help:      "The total number of payments marked overdue by the sweep",
	})
)
