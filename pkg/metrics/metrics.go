package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	// MessagesAppended counts persisted chat messages by type.
	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketchat_messages_appended_total",
		Help: "Number of chat messages persisted, by message type.",
	}, []string{"type"})

	// BroadcastsPublished counts messages handed to the broadcaster.
	BroadcastsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketchat_broadcasts_published_total",
		Help: "Number of messages published to room topics.",
	})

	// BroadcastFailures counts best-effort publishes that errored.
	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketchat_broadcast_failures_total",
		Help: "Number of publishes that failed after successful persistence.",
	})

	// RoomsCreated counts newly created chat rooms.
	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketchat_rooms_created_total",
		Help: "Number of chat rooms created.",
	})

	// WSConnections tracks currently connected websocket clients.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketchat_ws_connections",
		Help: "Number of websocket clients currently connected.",
	})
)

// Handler returns the prometheus scrape endpoint wrapped for gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
