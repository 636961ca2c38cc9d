package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatauth",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts by result (ok, rejected).",
	}, []string{"result"})

	refreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatauth",
		Subsystem: "auth",
		Name:      "refreshes_total",
		Help:      "Refresh attempts by result (rotated, rejected).",
	}, []string{"result"})

	accessChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatauth",
		Subsystem: "auth",
		Name:      "access_checks_total",
		Help:      "Protected-route access token checks by result (ok, rejected).",
	}, []string{"result"})

	revocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatauth",
		Subsystem: "auth",
		Name:      "revocations_total",
		Help:      "Successful session revocations (logout).",
	})
)
