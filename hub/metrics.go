package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tcriess/lightspeed-rooms/types"
)

var (
	metricConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lightspeed_rooms_connected_clients",
		Help: "Number of connected websocket clients.",
	})
	metricSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lightspeed_rooms_sessions",
		Help: "Number of joined sessions.",
	})
	metricRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lightspeed_rooms_rooms",
		Help: "Number of rooms in the store.",
	})
	metricInboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightspeed_rooms_inbound_events_total",
		Help: "Inbound client events by event name.",
	}, []string{"event"})
	metricDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lightspeed_rooms_deliveries_total",
		Help: "Outbound event deliveries enqueued to clients.",
	})
)

var knownInboundEvents = map[string]struct{}{
	types.EventJoin:              {},
	types.EventCreateRoom:        {},
	types.EventChangeRoom:        {},
	types.EventUpdateProfile:     {},
	types.EventMessage:           {},
	types.EventDeleteMessage:     {},
	types.EventClearAllMessages:  {},
	types.EventSetNotice:         {},
	types.EventUpdateNotice:      {},
	types.EventDeleteNotice:      {},
	types.EventAddAnswer:         {},
	types.EventUpdateAnswer:      {},
	types.EventDeleteAnswer:      {},
	types.EventTypingStart:       {},
	types.EventTypingStop:        {},
	types.EventUpdateLiveContent: {},
	types.EventClearLiveContent:  {},
	types.EventDeleteSection:     {},
	types.EventReorderSections:   {},
	types.EventMentionUser:       {},
	types.EventMentionAll:        {},
}

// countInboundEvent folds unknown event names into one label to keep the
// metric cardinality bounded.
func countInboundEvent(event string) {
	if _, ok := knownInboundEvents[event]; !ok {
		event = "unknown"
	}
	metricInboundEvents.WithLabelValues(event).Inc()
}
