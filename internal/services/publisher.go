package services

// Realtime event types pushed to dashboards.
const (
	EventRiderLocation = "RIDER_LOCATION_UPDATE"
	EventOrderStatus   = "ORDER_STATUS_UPDATE"
)

// Domain event types published to the broker only.
const (
	EventDeliveryCreated   = "DELIVERY_CREATED"
	EventDeliveryAssigned  = "DELIVERY_ASSIGNED"
	EventDeliveryDeleted   = "DELIVERY_DELETED"
	EventDeliveryCompleted = "DELIVERY_COMPLETED"
	EventTrackingStarted   = "TRACKING_STARTED"
	EventTrackingStopped   = "TRACKING_STOPPED"
)

// Publisher hands an event to its subscribers. Publish must not block on
// slow or absent subscribers; delivery is best effort.
type Publisher interface {
	Publish(eventType string, payload interface{})
}

// Publishers fans one event out to several publishers.
type Publishers []Publisher

func (ps Publishers) Publish(eventType string, payload interface{}) {
	for _, p := range ps {
		if p != nil {
			p.Publish(eventType, payload)
		}
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

// NopPublisher drops everything.
var NopPublisher Publisher = nopPublisher{}

func orNop(p Publisher) Publisher {
	if p == nil {
		return NopPublisher
	}
	return p
}
