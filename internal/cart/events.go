package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/logger"
)

// Reason names the mutation behind a CartChanged event.
type Reason string

const (
	ReasonItemAdded       Reason = "item_added"
	ReasonQuantityChanged Reason = "quantity_changed"
	ReasonItemRemoved     Reason = "item_removed"
	ReasonCleared         Reason = "cleared"
	ReasonGuestImported   Reason = "guest_imported"
	ReasonOrderPlaced     Reason = "order_placed"
)

// Event tells observers the cart changed and should be re-read.
type Event struct {
	Subject    string    `json:"subject,omitempty"`
	Reason     Reason    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Observer receives cart-changed events.
type Observer interface {
	CartChanged(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) CartChanged(ctx context.Context, event Event) {
	f(ctx, event)
}

// Observers fans an event out to every registered observer.
type Observers struct {
	mu        sync.RWMutex
	observers []Observer
}

func (o *Observers) Register(observer Observer) {
	if observer == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, observer)
}

func (o *Observers) CartChanged(ctx context.Context, event Event) {
	if o == nil {
		return
	}
	o.mu.RLock()
	observers := append([]Observer(nil), o.observers...)
	o.mu.RUnlock()
	for _, observer := range observers {
		observer.CartChanged(ctx, event)
	}
}

type publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
	ChannelName(topic string) string
}

// RedisPublisher forwards events to a redis channel so other BFF replicas
// can invalidate whatever they render for the same shopper.
type RedisPublisher struct {
	client  publisher
	channel string
	logg    *logger.Logger
}

const ChangedTopic = "cart_changed"

func NewRedisPublisher(client publisher, logg *logger.Logger) (*RedisPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis publisher required")
	}
	return &RedisPublisher{client: client, channel: client.ChannelName(ChangedTopic), logg: logg}, nil
}

func (p *RedisPublisher) CartChanged(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err == nil {
		err = p.client.Publish(ctx, p.channel, string(payload))
	}
	if err != nil && p.logg != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "cart.publish_failed")
	}
}
