package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(listingsSubmitted, moderationCards, moderationDecisions, publications, sessionsActive)
}

var (
	listingsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_submitted_total",
			Help: "Listings committed by the submission flow, by result.",
		},
		[]string{"result"},
	)

	moderationCards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_cards_total",
			Help: "Moderation cards sent to the moderation chat, by source (submit|outbox) and result.",
		},
		[]string{"source", "result"},
	)

	moderationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_decisions_total",
			Help: "Approve/reject clicks by verdict and outcome (applied|denied|stale|not_found|error).",
		},
		[]string{"verdict", "outcome"},
	)

	publications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publications_total",
			Help: "Posts sent to the public channel after approval, by result.",
		},
		[]string{"result"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "submission_sessions_active",
			Help: "Number of chats currently inside the submission flow.",
		},
	)
)

func IncListingSubmitted(result string) {
	listingsSubmitted.WithLabelValues(norm(result)).Inc()
}

func IncModerationCard(source, result string) {
	moderationCards.WithLabelValues(norm(source), norm(result)).Inc()
}

func IncModerationDecision(verdict, outcome string) {
	moderationDecisions.WithLabelValues(norm(verdict), norm(outcome)).Inc()
}

func IncPublication(result string) {
	publications.WithLabelValues(norm(result)).Inc()
}

func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

// Result maps an error to the ok|error label pair used by the counters above.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
