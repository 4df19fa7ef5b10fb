package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Session validation outcomes.
const (
	ValidationValid     = "valid"
	ValidationMissing   = "missing"
	ValidationCrypto    = "crypto_failure"
	ValidationMalformed = "malformed"
	ValidationExpired   = "expired"
	ValidationError     = "error"
)

// SessionsIssued counts tokens handed out after a successful login.
var SessionsIssued = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "powerpanel_sessions_issued_total",
	Help: "Total number of session tokens issued",
})

// SessionValidations tracks validator results by outcome.
var SessionValidations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "powerpanel_session_validations_total",
	Help: "Total number of session validations by outcome",
}, []string{"outcome"})

// Commands tracks privileged dashboard commands by action and outcome.
var Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "powerpanel_commands_total",
	Help: "Total number of privileged commands by action and outcome",
}, []string{"action", "outcome"})

// BackendUp is 1 while the last poll of the control backend succeeded.
var BackendUp = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "powerpanel_control_backend_up",
	Help: "Whether the last poll of the control backend succeeded",
})

// Register registers all metrics with the provided registry.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(SessionsIssued)
	registry.MustRegister(SessionValidations)
	registry.MustRegister(Commands)
	registry.MustRegister(BackendUp)
}

// IncSessionIssued increments the issued sessions counter.
func IncSessionIssued() {
	SessionsIssued.Inc()
}

// IncValidation increments the validation counter for outcome.
func IncValidation(outcome string) {
	SessionValidations.WithLabelValues(outcome).Inc()
}

// IncCommand increments the command counter.
func IncCommand(action, outcome string) {
	Commands.WithLabelValues(action, outcome).Inc()
}

// SetBackendUp records the control backend reachability.
func SetBackendUp(up bool) {
	if up {
		BackendUp.Set(1)
		return
	}
	BackendUp.Set(0)
}
