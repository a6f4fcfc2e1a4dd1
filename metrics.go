package framed

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "framed",
			Subsystem: "server",
			Name:      "connections_accepted_total",
			Help:      "Total accepted connections.",
		},
	)
	connsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "framed",
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Currently registered connections.",
		},
	)
	connsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framed",
			Subsystem: "server",
			Name:      "connections_closed_total",
			Help:      "Closed connections by cause.",
		},
		[]string{"action", "errored"},
	)
	framesIn = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "framed",
			Subsystem: "codec",
			Name:      "frames_in_total",
			Help:      "Frames decoded from inbound bytes.",
		},
	)
	framesOut = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "framed",
			Subsystem: "codec",
			Name:      "frames_out_total",
			Help:      "Frames encoded for outbound delivery.",
		},
	)
	bytesIn = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "framed",
			Subsystem: "conn",
			Name:      "bytes_in_total",
			Help:      "Bytes read from transports.",
		},
	)
	bytesOut = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "framed",
			Subsystem: "conn",
			Name:      "bytes_out_total",
			Help:      "Bytes written to transports.",
		},
	)
)

// RegisterMetrics registers the package collectors with the default
// Prometheus registerer. Safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connsAccepted, connsActive, connsClosed,
			framesIn, framesOut, bytesIn, bytesOut,
		)
	})
}

func recordConnAccepted() {
	connsAccepted.Inc()
	connsActive.Inc()
}

func recordConnClosed(action string, errored bool) {
	connsActive.Dec()
	connsClosed.WithLabelValues(action, strconv.FormatBool(errored)).Inc()
}

func recordFrameIn()      { framesIn.Inc() }
func recordFrameOut()     { framesOut.Inc() }
func recordBytesIn(n int) { bytesIn.Add(float64(n)) }

func recordBytesOut(n int) { bytesOut.Add(float64(n)) }
