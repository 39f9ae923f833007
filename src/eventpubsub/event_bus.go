package eventpubsub

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

// Callback receives the emitted payload, or nil when the event carries none.
type Callback func(data interface{})

type subscription struct {
	namespace string
	callback  Callback
}

var namespacePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// EventBus dispatches the fixed set of embed events to namespaced callbacks.
// A (namespace, event) pair can only be registered once.
type EventBus struct {
	hookMutex     sync.Mutex
	mutex         sync.Mutex
	subscriptions map[eventmodels.EventName][]*subscription
	active        map[eventmodels.EventName]bool
	hooks         events.EventEmmiter
}

func (b *EventBus) IsValidEvent(name string) bool {
	return eventmodels.EventName(name).IsValid()
}

// OnActivate registers fn to run each time eventName gains its first subscriber.
func (b *EventBus) OnActivate(eventName eventmodels.EventName, fn func()) {
	b.hooks.On(activateHook(eventName), func(...interface{}) { fn() })
}

// OnDeactivate registers fn to run each time eventName loses its last subscriber.
func (b *EventBus) OnDeactivate(eventName eventmodels.EventName, fn func()) {
	b.hooks.On(deactivateHook(eventName), func(...interface{}) { fn() })
}

func (b *EventBus) On(namespace string, eventName eventmodels.EventName, callback Callback) error {
	if !eventName.IsValid() {
		return fmt.Errorf("EventBus.On: %q: %w", eventName, eventmodels.ErrInvalidEventName)
	}

	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("EventBus.On: %q: %w", namespace, eventmodels.ErrInvalidNamespace)
	}

	b.hookMutex.Lock()
	defer b.hookMutex.Unlock()

	b.mutex.Lock()
	for _, sub := range b.subscriptions[eventName] {
		if sub.namespace == namespace {
			b.mutex.Unlock()
			return fmt.Errorf("EventBus.On: %s.%s: %w", eventName, namespace, eventmodels.ErrNamespaceTaken)
		}
	}

	if callback == nil {
		b.mutex.Unlock()
		return fmt.Errorf("EventBus.On: %s.%s: %w", eventName, namespace, eventmodels.ErrInvalidCallback)
	}

	b.subscriptions[eventName] = append(b.subscriptions[eventName], &subscription{
		namespace: namespace,
		callback:  callback,
	})

	activate := !b.active[eventName]
	if activate {
		b.active[eventName] = true
	}
	b.mutex.Unlock()

	log.Debugf("EventBus.On: registered %s for %s", namespace, eventName)

	if activate {
		b.hooks.Emit(activateHook(eventName))
	}

	return nil
}

// Off removes namespace from the given event, or from every event when no
// event name is passed.
func (b *EventBus) Off(namespace string, eventName ...eventmodels.EventName) error {
	targets := eventmodels.EventNames
	if len(eventName) > 0 {
		for _, name := range eventName {
			if !name.IsValid() {
				return fmt.Errorf("EventBus.Off: %q: %w", name, eventmodels.ErrInvalidEventName)
			}
		}
		targets = eventName
	}

	b.hookMutex.Lock()
	defer b.hookMutex.Unlock()

	var deactivated []eventmodels.EventName

	b.mutex.Lock()
	for _, name := range targets {
		subs := b.subscriptions[name]
		for i, sub := range subs {
			if sub.namespace != namespace {
				continue
			}

			b.subscriptions[name] = append(subs[:i:i], subs[i+1:]...)
			log.Debugf("EventBus.Off: removed %s from %s", namespace, name)
			break
		}

		if len(b.subscriptions[name]) == 0 && b.active[name] {
			b.active[name] = false
			deactivated = append(deactivated, name)
		}
	}
	b.mutex.Unlock()

	for _, name := range deactivated {
		b.hooks.Emit(deactivateHook(name))
	}

	return nil
}

// Emit calls every callback registered for eventName in registration order.
// A panicking callback is logged and does not stop the others.
func (b *EventBus) Emit(eventName eventmodels.EventName, data ...interface{}) {
	if !eventName.IsValid() {
		log.Warnf("EventBus.Emit: ignoring unknown event %q", eventName)
		return
	}

	b.mutex.Lock()
	subs := append([]*subscription(nil), b.subscriptions[eventName]...)
	b.mutex.Unlock()

	var payload interface{}
	if len(data) > 0 {
		payload = data[0]
	}

	for _, sub := range subs {
		b.invoke(eventName, sub, payload)
	}
}

func (b *EventBus) invoke(eventName eventmodels.EventName, sub *subscription, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"event":     eventName,
				"namespace": sub.namespace,
			}).Errorf("EventBus.Emit: callback failed: %v", r)
		}
	}()

	sub.callback(payload)
}

func (b *EventBus) SubscriberCount(eventName eventmodels.EventName) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return len(b.subscriptions[eventName])
}

func (b *EventBus) Namespaces(eventName eventmodels.EventName) []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	namespaces := make([]string, 0, len(b.subscriptions[eventName]))
	for _, sub := range b.subscriptions[eventName] {
		namespaces = append(namespaces, sub.namespace)
	}

	return namespaces
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscriptions: make(map[eventmodels.EventName][]*subscription),
		active:        make(map[eventmodels.EventName]bool),
		hooks:         events.New(),
	}
}
