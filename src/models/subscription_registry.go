package models

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

const subscriptionKeySeparator = ":"

// SubscriptionRegistry tracks which instruments are subscribed for prices,
// keyed by instrument id and subscriber id.
type SubscriptionRegistry struct {
	mutex sync.Mutex
	keys  map[string]struct{}
}

func subscriptionKey(subscriberID, instrumentID string) string {
	return instrumentID + subscriptionKeySeparator + subscriberID
}

func (r *SubscriptionRegistry) Subscribe(subscriberID, instrumentID string) error {
	if strings.Contains(subscriberID, subscriptionKeySeparator) {
		return fmt.Errorf("SubscriptionRegistry.Subscribe: subscriber id %q cannot contain %q: %w", subscriberID, subscriptionKeySeparator, eventmodels.ErrInvalidArgument)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.keys[subscriptionKey(subscriberID, instrumentID)] = struct{}{}
	return nil
}

func (r *SubscriptionRegistry) Unsubscribe(subscriberID, instrumentID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.keys, subscriptionKey(subscriberID, instrumentID))
}

// SubscribedInstrumentIDs returns the sorted, de-duplicated instrument ids
// that have at least one subscriber.
func (r *SubscriptionRegistry) SubscribedInstrumentIDs() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	seen := make(map[string]struct{}, len(r.keys))
	ids := make([]string, 0, len(r.keys))
	for key := range r.keys {
		// instrument ids may contain the separator, subscriber ids may not
		idx := strings.LastIndex(key, subscriptionKeySeparator)
		instrumentID := key[:idx]
		if _, found := seen[instrumentID]; found {
			continue
		}

		seen[instrumentID] = struct{}{}
		ids = append(ids, instrumentID)
	}

	sort.Strings(ids)
	return ids
}

func (r *SubscriptionRegistry) IsSubscribed(instrumentID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	prefix := instrumentID + subscriptionKeySeparator
	for key := range r.keys {
		if strings.HasPrefix(key, prefix) && !strings.Contains(key[len(prefix):], subscriptionKeySeparator) {
			return true
		}
	}

	return false
}

func (r *SubscriptionRegistry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.keys)
}

func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		keys: make(map[string]struct{}),
	}
}
