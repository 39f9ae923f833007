package eventconsumers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
	"github.com/jiaming2012/tradable-embed/src/eventpubsub"
	"github.com/jiaming2012/tradable-embed/src/models"
)

const (
	CandleNamespace    = "candleUpdater"
	candleSubscriberID = "candleUpdater"
)

// CandleCallback receives the historical candles once and then every change
// to the current candle as a single element list.
type CandleCallback func(candles []*eventmodels.Candle)

type candleSubscription struct {
	accountID         string
	instrumentID      string
	aggregationMillis int64
	lastCandle        *eventmodels.Candle
	callback          CandleCallback
}

// CandleUpdater keeps the latest candle of one instrument current from the
// bid prices carried by accountUpdated snapshots.
type CandleUpdater struct {
	client        eventmodels.IAccountApiClient
	bus           *eventpubsub.EventBus
	subscriptions *models.SubscriptionRegistry
	now           func() time.Time

	mutex      sync.Mutex
	active     *candleSubscription
	generation uint64
}

// StartUpdates replaces any running subscription, delivers the candles between
// from and now, then follows the instrument's bid price.
func (u *CandleUpdater) StartUpdates(ctx context.Context, accountID, instrumentID string, from time.Time, aggregationMinutes int, callback CandleCallback) error {
	if instrumentID == "" {
		return fmt.Errorf("CandleUpdater.StartUpdates: missing instrument id: %w", eventmodels.ErrInvalidArgument)
	}

	if aggregationMinutes <= 0 {
		return fmt.Errorf("CandleUpdater.StartUpdates: aggregation must be positive, got %d: %w", aggregationMinutes, eventmodels.ErrInvalidArgument)
	}

	if callback == nil {
		return fmt.Errorf("CandleUpdater.StartUpdates: %w", eventmodels.ErrInvalidCallback)
	}

	u.StopUpdates()

	u.mutex.Lock()
	generation := u.generation
	u.mutex.Unlock()

	candles, err := u.client.GetCandles(ctx, accountID, instrumentID, from, u.now(), aggregationMinutes)
	if err != nil {
		var apiErr *eventmodels.ApiError
		if errors.As(err, &apiErr) {
			u.bus.Emit(eventmodels.ErrorEvent, apiErr)
		}

		return fmt.Errorf("CandleUpdater.StartUpdates: failed to fetch candles for %s: %w", instrumentID, err)
	}

	candles = withoutNilCandles(candles)

	sub := &candleSubscription{
		accountID:         accountID,
		instrumentID:      instrumentID,
		aggregationMillis: int64(aggregationMinutes) * time.Minute.Milliseconds(),
		callback:          callback,
	}

	if len(candles) > 0 {
		last := *candles[len(candles)-1]
		sub.lastCandle = &last
	}

	if !u.isCurrent(generation) {
		log.Debugf("CandleUpdater.StartUpdates: updates for %s were superseded", instrumentID)
		return nil
	}

	callback(candles)

	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.generation != generation {
		log.Debugf("CandleUpdater.StartUpdates: updates for %s were superseded", instrumentID)
		return nil
	}

	if err := u.subscriptions.Subscribe(candleSubscriberID, instrumentID); err != nil {
		return fmt.Errorf("CandleUpdater.StartUpdates: %w", err)
	}

	if err := u.bus.On(CandleNamespace, eventmodels.AccountUpdatedEvent, u.handleAccountUpdated); err != nil {
		u.subscriptions.Unsubscribe(candleSubscriberID, instrumentID)
		return fmt.Errorf("CandleUpdater.StartUpdates: %w", err)
	}

	u.active = sub
	log.Infof("CandleUpdater: following %s at %d minute candles", instrumentID, aggregationMinutes)

	return nil
}

// StopUpdates ends the running subscription and cancels a pending start.
// Calling it without a subscription does nothing.
func (u *CandleUpdater) StopUpdates() {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.generation += 1

	if u.active == nil {
		return
	}

	u.subscriptions.Unsubscribe(candleSubscriberID, u.active.instrumentID)

	if err := u.bus.Off(CandleNamespace, eventmodels.AccountUpdatedEvent); err != nil {
		log.Errorf("CandleUpdater.StopUpdates: %v", err)
	}

	log.Infof("CandleUpdater: stopped following %s", u.active.instrumentID)
	u.active = nil
}

func (u *CandleUpdater) isCurrent(generation uint64) bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	return u.generation == generation
}

func (u *CandleUpdater) IsActive() bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	return u.active != nil
}

// LastCandle returns a copy of the current candle, or nil.
func (u *CandleUpdater) LastCandle() *eventmodels.Candle {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.active == nil || u.active.lastCandle == nil {
		return nil
	}

	c := *u.active.lastCandle
	return &c
}

func (u *CandleUpdater) handleAccountUpdated(data interface{}) {
	snapshot, ok := data.(*eventmodels.AccountSnapshot)
	if !ok || snapshot == nil {
		return
	}

	u.mutex.Lock()
	sub := u.active
	if sub == nil || snapshot.AccountID != sub.accountID {
		u.mutex.Unlock()
		return
	}

	price := snapshot.FindPrice(sub.instrumentID)
	if price == nil || !price.HasBid() {
		u.mutex.Unlock()
		return
	}

	updated, changed := u.advance(sub, *price.Bid)
	callback := sub.callback
	u.mutex.Unlock()

	if changed {
		callback([]*eventmodels.Candle{updated})
	}
}

// advance applies bid to the current candle, opening a new bucket once the
// aggregation window has passed. It reports whether the candle changed.
func (u *CandleUpdater) advance(sub *candleSubscription, bid float64) (*eventmodels.Candle, bool) {
	now := u.now().UnixMilli()

	if sub.lastCandle == nil {
		sub.lastCandle = &eventmodels.Candle{
			Timestamp: now - now%sub.aggregationMillis,
			Open:      bid,
			High:      bid,
			Low:       bid,
			Close:     bid,
		}

		c := *sub.lastCandle
		return &c, true
	}

	before := *sub.lastCandle

	if now-sub.lastCandle.Timestamp >= sub.aggregationMillis {
		sub.lastCandle.Roll(sub.aggregationMillis)
	}

	sub.lastCandle.Update(bid)

	if *sub.lastCandle == before {
		return nil, false
	}

	c := *sub.lastCandle
	return &c, true
}

func withoutNilCandles(candles []*eventmodels.Candle) []*eventmodels.Candle {
	filtered := make([]*eventmodels.Candle, 0, len(candles))
	for _, c := range candles {
		if c != nil {
			filtered = append(filtered, c)
		}
	}

	return filtered
}

func NewCandleUpdater(client eventmodels.IAccountApiClient, bus *eventpubsub.EventBus, subscriptions *models.SubscriptionRegistry, now func() time.Time) *CandleUpdater {
	if now == nil {
		now = time.Now
	}

	return &CandleUpdater{
		client:        client,
		bus:           bus,
		subscriptions: subscriptions,
		now:           now,
	}
}
