package mapping

import (
	"context"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
)

// MappingEventType identifies one kind of schema lifecycle event.
type MappingEventType string

const (
	EventFieldMappersAdded  MappingEventType = "mapping.fields.added"
	EventObjectMappersAdded MappingEventType = "mapping.objects.added"
	EventSchemaMerged       MappingEventType = "mapping.merged"
)

// MappingEvent is emitted on the mapper's event bus whenever the schema
// changes: dynamic mapper additions during parsing and completed merges.
type MappingEvent struct {
	Type      MappingEventType `json:"type"`
	Mapping   string           `json:"mapping"` // Document type the schema maps.
	Paths     []string         `json:"paths,omitempty"`
	Conflicts []string         `json:"conflicts,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// EventCallbackFunction handles one mapping event.
type EventCallbackFunction func(ctx context.Context, event MappingEvent) error

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	Event       MappingEventType `json:"event"`
	Label       *string          `json:"label,omitempty"`
	Description *string          `json:"description,omitempty"`
	Unsubscribe func()
}

// RegisterSubscriptionOptions defines options for registering a
// subscription.
type RegisterSubscriptionOptions struct {
	Event       MappingEventType `json:"event"`
	Label       *string          `json:"label,omitempty"`
	Description *string          `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// mappingEventBus wraps the typed bus with subscription bookkeeping.
type mappingEventBus struct {
	bus           *events.TypedEventBus[MappingEvent]
	subMu         sync.RWMutex
	subscriptions map[string]*SubscriptionInfo
}

func newMappingEventBus() (*mappingEventBus, error) {
	bus, err := events.NewTypedEventBus[MappingEvent](events.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return &mappingEventBus{
		bus:           bus,
		subscriptions: map[string]*SubscriptionInfo{},
	}, nil
}

func (b *mappingEventBus) emit(event MappingEvent) {
	if b != nil && b.bus != nil {
		b.bus.Emit(string(event.Type), event)
	}
}

func (b *mappingEventBus) register(options RegisterSubscriptionOptions) string {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	unsubscribe := b.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	b.subscriptions[id] = &SubscriptionInfo{
		Event:       options.Event,
		Unsubscribe: unsubscribe,
		Label:       options.Label,
		Description: options.Description,
	}
	return id
}

func (b *mappingEventBus) unregister(id string) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	info := b.subscriptions[id]
	if info != nil {
		info.Unsubscribe()
		delete(b.subscriptions, id)
	}
}

func (b *mappingEventBus) all() []SubscriptionInfo {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	infos := make([]SubscriptionInfo, 0, len(b.subscriptions))
	for _, info := range b.subscriptions {
		infos = append(infos, *info)
	}
	return infos
}

// RegisterSubscription subscribes a callback to one mapping event type and
// returns the subscription id.
func (m *DocumentMapper) RegisterSubscription(options RegisterSubscriptionOptions) string {
	return m.bus.register(options)
}

// UnregisterSubscription removes a subscription by id. Unknown ids are
// ignored.
func (m *DocumentMapper) UnregisterSubscription(id string) {
	m.bus.unregister(id)
}

// Subscriptions returns all registered subscriptions.
func (m *DocumentMapper) Subscriptions() []SubscriptionInfo {
	return m.bus.all()
}

func (m *DocumentMapper) emitMappingEvent(eventType MappingEventType, paths, conflicts []string) {
	m.bus.emit(MappingEvent{
		Type:      eventType,
		Mapping:   m.typ,
		Paths:     paths,
		Conflicts: conflicts,
		Timestamp: time.Now().UnixMilli(),
	})
}
