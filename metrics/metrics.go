// SPDX-License-Identifier: GPL-3.0-only

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerMutationsTotal counts ledger mutations by operation and outcome.
	LedgerMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "silently",
		Subsystem: "ledger",
		Name:      "mutations_total",
		Help:      "Total ledger mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	// CreditsConsumedTotal counts credits requested by usage events.
	CreditsConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "silently",
		Subsystem: "ledger",
		Name:      "credits_consumed_total",
		Help:      "Total credits requested by usage events.",
	})

	// CreditsGrantedTotal counts credits added through top-ups.
	CreditsGrantedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "silently",
		Subsystem: "ledger",
		Name:      "credits_topped_up_total",
		Help:      "Total credits added through top-ups.",
	})

	// PaymentVerificationsTotal counts gateway signature checks by order kind and result.
	PaymentVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "silently",
		Subsystem: "payment",
		Name:      "verifications_total",
		Help:      "Payment signature verifications by order kind and result.",
	}, []string{"kind", "result"})

	// WebhookEventsTotal counts Stripe webhook events by type and outcome.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "silently",
		Subsystem: "payment",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})

	// LicensesIssuedTotal counts issued license keys.
	LicensesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "silently",
		Subsystem: "license",
		Name:      "issued_total",
		Help:      "Total license keys issued.",
	})

	// LicenseValidationsTotal counts license validations by outcome.
	LicenseValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "silently",
		Subsystem: "license",
		Name:      "validations_total",
		Help:      "License validations by outcome.",
	}, []string{"outcome"})

	// EventsPublishedTotal counts usage events handed to the event bus.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "silently",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Usage events published to the event bus by outcome.",
	}, []string{"outcome"})
)

// Outcome returns the label value used for a mutation result.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
