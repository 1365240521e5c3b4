package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters/histograms for booking and lead flows.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	appointmentsBooked *prometheus.CounterVec
	statusTransitions  *prometheus.CounterVec
	slotConflicts      *prometheus.CounterVec
	leadsCreated       *prometheus.CounterVec
	leadConversions    *prometheus.CounterVec
	duplicateChecks    *prometheus.CounterVec
	httpLatency        *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		appointmentsBooked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "booked_total",
			Help:      "Appointments created, by channel",
		}, []string{"channel"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "status_transitions_total",
			Help:      "Appointment status changes",
		}, []string{"from", "to"}),
		slotConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "slot_conflicts_total",
			Help:      "Bookings rejected because the slot was taken or locked",
		}, []string{"reason"}),
		leadsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "leads",
			Name:      "created_total",
			Help:      "Leads created, by channel",
		}, []string{"channel"}),
		leadConversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "leads",
			Name:      "conversions_total",
			Help:      "Lead to patient conversions",
		}, []string{"result"}),
		duplicateChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "leads",
			Name:      "duplicate_checks_total",
			Help:      "Duplicate lookups, by outcome",
		}, []string{"found"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.appointmentsBooked,
		m.statusTransitions,
		m.slotConflicts,
		m.leadsCreated,
		m.leadConversions,
		m.duplicateChecks,
		m.httpLatency,
	)
	return m
}

func (m *Metrics) AppointmentBooked(channel string) {
	if m == nil {
		return
	}
	m.appointmentsBooked.WithLabelValues(channel).Inc()
}

func (m *Metrics) StatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) SlotConflict(reason string) {
	if m == nil {
		return
	}
	m.slotConflicts.WithLabelValues(reason).Inc()
}

func (m *Metrics) LeadCreated(channel string) {
	if m == nil {
		return
	}
	m.leadsCreated.WithLabelValues(channel).Inc()
}

func (m *Metrics) LeadConversion(result string) {
	if m == nil {
		return
	}
	m.leadConversions.WithLabelValues(result).Inc()
}

func (m *Metrics) DuplicateCheck(found bool) {
	if m == nil {
		return
	}
	m.duplicateChecks.WithLabelValues(strconv.FormatBool(found)).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
