// Package events publishes order lifecycle events for downstream consumers
// (kitchen displays, courier apps, analytics).
//
// Publishing is best-effort from the caller's point of view: services log a
// failed publish and carry on, so a broker outage never fails an order
// request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
)

// Routing keys.
const (
	OrderCreated  = "order.created"
	OrderAssigned = "order.assigned"
	OrderStatus   = "order.status"
)

// Event is the JSON body of every order event.
type Event struct {
	Type         string             `json:"type"`
	OrderID      uint               `json:"order_id"`
	Status       domain.OrderStatus `json:"status"`
	RestaurantID *uint              `json:"restaurant_id,omitempty"`
	Total        string             `json:"total,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// FromOrder builds an event of type typ describing o's current state.
func FromOrder(typ string, o *domain.Order, at time.Time) Event {
	ev := Event{
		Type:         typ,
		OrderID:      o.ID,
		Status:       o.Status,
		RestaurantID: o.RestaurantID,
		OccurredAt:   at.UTC(),
	}
	if len(o.Items) > 0 {
		ev.Total = o.Total().StringFixed(2)
	}
	return ev
}

// Marshal encodes the event body.
func (e Event) Marshal() ([]byte, error) { return json.Marshal(e) }

// Publisher sends events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
