package authsvc

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkrupp/homecase-auth/internal/domain"
)

// Outcome label values.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalid            = "invalid"
	OutcomeTaken              = "taken"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeError              = "error"
)

// Metrics contains the Prometheus metrics of the auth service.
type Metrics struct {
	RegistrationsTotal *prometheus.CounterVec
	LoginsTotal        *prometheus.CounterVec
}

// NewMetrics creates and registers the auth service metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authsvc_registrations_total",
				Help: "Total number of registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authsvc_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.RegistrationsTotal)
	reg.MustRegister(m.LoginsTotal)

	return m
}

func (m *Metrics) observeRegistration(err error) {
	if m != nil {
		m.RegistrationsTotal.WithLabelValues(outcome(err)).Inc()
	}
}

func (m *Metrics) observeLogin(err error) {
	if m != nil {
		m.LoginsTotal.WithLabelValues(outcome(err)).Inc()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrUsernameTaken):
		return OutcomeTaken
	case errors.Is(err, domain.ErrEmptyUsername), errors.Is(err, domain.ErrEmptyPassword):
		return OutcomeInvalid
	case errors.Is(err, domain.ErrInvalidCredentials):
		return OutcomeInvalidCredentials
	default:
		return OutcomeError
	}
}
