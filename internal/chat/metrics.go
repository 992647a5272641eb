package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	OpenRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_open_rooms",
		Help: "Number of currently open rooms",
	})

	ConnectedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connected_sessions",
		Help: "Number of currently connected sessions",
	})

	RoomEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_room_events_total",
		Help: "Total room events processed by type",
	}, []string{"type"})

	EventProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_room_event_processing_seconds",
		Help:    "Time to process each room event type",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(OpenRooms)
	prometheus.MustRegister(ConnectedSessions)
	prometheus.MustRegister(RoomEventsTotal)
	prometheus.MustRegister(EventProcessingDuration)
}
