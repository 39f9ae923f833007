package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
	"github.com/jiaming2012/tradable-embed/src/eventpubsub"
	"github.com/jiaming2012/tradable-embed/src/models"
)

const instrumentationName = "github.com/jiaming2012/tradable-embed/src/worker"

// AccountUpdatePoller fetches the selected account's snapshot on a timer and
// publishes it as accountUpdated. At most one fetch is in flight at a time.
type AccountUpdatePoller struct {
	wg            *sync.WaitGroup
	pollWg        sync.WaitGroup
	client        eventmodels.IAccountApiClient
	bus           *eventpubsub.EventBus
	instruments   *models.InstrumentCache
	subscriptions *models.SubscriptionRegistry
	inFlight      atomic.Bool

	mutex          sync.Mutex
	account        *eventmodels.Account
	tradingEnabled bool
	generation     uint64
	interval       time.Duration
	lastSnapshot   *eventmodels.AccountSnapshot
	parentCtx      context.Context
	cancelLoop     context.CancelFunc
	onUnauthorized func()

	polls        metric.Int64Counter
	pollFailures metric.Int64Counter
	pollLatency  metric.Float64Histogram
}

// Attach starts the timer whenever accountUpdated gains its first subscriber
// and stops it when the last one leaves.
func (p *AccountUpdatePoller) Attach(ctx context.Context) {
	p.bus.OnActivate(eventmodels.AccountUpdatedEvent, func() {
		p.Start(ctx)
	})

	p.bus.OnDeactivate(eventmodels.AccountUpdatedEvent, func() {
		p.Stop()
	})

	if p.bus.SubscriberCount(eventmodels.AccountUpdatedEvent) > 0 {
		p.Start(ctx)
	}
}

func (p *AccountUpdatePoller) Start(ctx context.Context) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.cancelLoop != nil {
		return
	}

	p.startLocked(ctx)
}

func (p *AccountUpdatePoller) startLocked(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	p.parentCtx = ctx
	p.cancelLoop = cancel

	ticker := time.NewTicker(p.interval)
	log.Debugf("AccountUpdatePoller: polling every %v", p.interval)

	// polls run under ctx so restarting the timer keeps the fetch in flight
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				log.Debug("AccountUpdatePoller: timer stopped")
				return
			case <-ticker.C:
				if loopCtx.Err() != nil {
					return
				}

				p.Tick(ctx)
			}
		}
	}()
}

func (p *AccountUpdatePoller) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.cancelLoop == nil {
		return
	}

	p.cancelLoop()
	p.cancelLoop = nil
	p.parentCtx = nil
}

func (p *AccountUpdatePoller) Running() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.cancelLoop != nil
}

// SetUpdateInterval changes the polling period, restarting a running timer.
func (p *AccountUpdatePoller) SetUpdateInterval(millis int) error {
	if millis <= 0 {
		return fmt.Errorf("AccountUpdatePoller.SetUpdateInterval: interval must be positive, got %d: %w", millis, eventmodels.ErrInvalidArgument)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.interval = time.Duration(millis) * time.Millisecond

	if p.cancelLoop != nil {
		parent := p.parentCtx
		p.cancelLoop()
		p.startLocked(parent)
	}

	return nil
}

func (p *AccountUpdatePoller) UpdateInterval() time.Duration {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.interval
}

// SetAccount switches the polled account. Responses still in flight for the
// previous account are discarded.
func (p *AccountUpdatePoller) SetAccount(account *eventmodels.Account) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.account = account
	p.lastSnapshot = nil
	p.generation += 1
}

func (p *AccountUpdatePoller) SetTradingEnabled(enabled bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.tradingEnabled == enabled {
		return
	}

	p.tradingEnabled = enabled
	p.generation += 1
}

func (p *AccountUpdatePoller) TradingEnabled() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.tradingEnabled
}

func (p *AccountUpdatePoller) SetUnauthorizedHandler(fn func()) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.onUnauthorized = fn
}

func (p *AccountUpdatePoller) LastSnapshot() *eventmodels.AccountSnapshot {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.lastSnapshot
}

func (p *AccountUpdatePoller) InFlight() bool {
	return p.inFlight.Load()
}

// Wait blocks until every started poll has finished. Timer loops are tracked
// by the WaitGroup passed to NewAccountUpdatePoller.
func (p *AccountUpdatePoller) Wait() {
	p.pollWg.Wait()
}

// Tick starts one poll unless trading is disabled, a poll is already in
// flight or nobody listens to accountUpdated. It does not wait for the poll.
func (p *AccountUpdatePoller) Tick(ctx context.Context) bool {
	p.mutex.Lock()
	enabled := p.tradingEnabled
	account := p.account
	generation := p.generation
	p.mutex.Unlock()

	if !enabled || account == nil {
		return false
	}

	if p.bus.SubscriberCount(eventmodels.AccountUpdatedEvent) == 0 {
		return false
	}

	if !p.inFlight.CompareAndSwap(false, true) {
		log.Trace("AccountUpdatePoller.Tick: previous poll still in flight")
		return false
	}

	p.pollWg.Add(1)
	go func() {
		defer p.pollWg.Done()
		defer p.inFlight.Store(false)
		defer p.recoverPoll(account)

		p.poll(ctx, account, generation)
	}()

	return true
}

func (p *AccountUpdatePoller) isCurrent(generation uint64) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.tradingEnabled && p.generation == generation
}

func (p *AccountUpdatePoller) poll(ctx context.Context, account *eventmodels.Account, generation uint64) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "AccountUpdatePoller.poll")
	defer span.End()

	span.SetAttributes(attribute.String("account.id", account.AccountID))
	accountAttr := metric.WithAttributes(attribute.String("account.id", account.AccountID))

	start := time.Now()
	p.polls.Add(ctx, 1, accountAttr)

	instrumentIDs := p.subscriptions.SubscribedInstrumentIDs()

	snapshot, err := p.client.GetSnapshot(ctx, account.AccountID, instrumentIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot fetch failed")
		p.pollFailures.Add(ctx, 1, accountAttr)
		p.fail(ctx, generation, fmt.Errorf("AccountUpdatePoller.poll: failed to fetch snapshot for %s: %w", account.AccountID, err))
		return
	}

	if !account.FullInstrumentList {
		if err := p.backfillInstruments(ctx, account, generation, snapshot); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "instrument backfill failed")
			p.pollFailures.Add(ctx, 1, accountAttr)
			p.fail(ctx, generation, err)
			return
		}
	}

	p.pollLatency.Record(ctx, float64(time.Since(start).Milliseconds()), accountAttr)

	p.mutex.Lock()
	current := p.tradingEnabled && p.generation == generation
	if current {
		p.lastSnapshot = snapshot
	}
	p.mutex.Unlock()

	if !current {
		log.Debugf("AccountUpdatePoller.poll: discarding stale snapshot for %s", account.AccountID)
		return
	}

	// Emit runs outside the mutex since subscribers may call SetTradingEnabled
	// or SetAccount. A switch landing between the check above and Emit is still
	// published once; subscribers that care compare snapshot.AccountID.
	p.bus.Emit(eventmodels.AccountUpdatedEvent, snapshot)
}

func (p *AccountUpdatePoller) recoverPoll(account *eventmodels.Account) {
	if r := recover(); r != nil {
		err := fmt.Errorf("AccountUpdatePoller.poll: failed to process snapshot for %s: %v", account.AccountID, r)
		log.Error(err)
		p.bus.Emit(eventmodels.ErrorEvent, err)
	}
}

// backfillInstruments caches the instruments referenced by open positions and
// pending orders that the cache does not know yet.
func (p *AccountUpdatePoller) backfillInstruments(ctx context.Context, account *eventmodels.Account, generation uint64, snapshot *eventmodels.AccountSnapshot) error {
	missing := p.instruments.MissingIDs(snapshot.ReferencedInstrumentIDs())
	if len(missing) == 0 {
		return nil
	}

	instruments, err := p.client.GetInstruments(ctx, account.AccountID, missing)
	if err != nil {
		return fmt.Errorf("AccountUpdatePoller.backfillInstruments: failed to fetch %d instruments: %w", len(missing), err)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.generation != generation {
		return nil
	}

	p.instruments.Add(instruments)
	log.Debugf("AccountUpdatePoller.backfillInstruments: cached %d instruments for %s", len(instruments), account.AccountID)

	return nil
}

func (p *AccountUpdatePoller) fail(ctx context.Context, generation uint64, err error) {
	if ctx.Err() != nil {
		log.Debugf("AccountUpdatePoller: poll cancelled: %v", err)
		return
	}

	if !p.isCurrent(generation) {
		log.Debugf("AccountUpdatePoller: ignoring error for stale poll: %v", err)
		return
	}

	log.Warn(err)

	if eventmodels.IsUnauthorized(err) {
		p.mutex.Lock()
		onUnauthorized := p.onUnauthorized
		p.mutex.Unlock()

		if onUnauthorized != nil {
			onUnauthorized()
		}
	}

	var apiErr *eventmodels.ApiError
	if errors.As(err, &apiErr) {
		p.bus.Emit(eventmodels.ErrorEvent, apiErr)
		return
	}

	p.bus.Emit(eventmodels.ErrorEvent, err)
}

func NewAccountUpdatePoller(wg *sync.WaitGroup, client eventmodels.IAccountApiClient, bus *eventpubsub.EventBus, instruments *models.InstrumentCache, subscriptions *models.SubscriptionRegistry, updateIntervalMillis int) (*AccountUpdatePoller, error) {
	if updateIntervalMillis <= 0 {
		return nil, fmt.Errorf("NewAccountUpdatePoller: interval must be positive, got %d: %w", updateIntervalMillis, eventmodels.ErrInvalidArgument)
	}

	meter := otel.Meter(instrumentationName)

	polls, err := meter.Int64Counter("embed.account.polls", metric.WithDescription("snapshot polls started"))
	if err != nil {
		return nil, fmt.Errorf("NewAccountUpdatePoller: failed to create counter: %w", err)
	}

	pollFailures, err := meter.Int64Counter("embed.account.poll_failures", metric.WithDescription("snapshot polls that failed"))
	if err != nil {
		return nil, fmt.Errorf("NewAccountUpdatePoller: failed to create counter: %w", err)
	}

	pollLatency, err := meter.Float64Histogram("embed.account.poll_latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("NewAccountUpdatePoller: failed to create histogram: %w", err)
	}

	return &AccountUpdatePoller{
		wg:            wg,
		client:        client,
		bus:           bus,
		instruments:   instruments,
		subscriptions: subscriptions,
		interval:      time.Duration(updateIntervalMillis) * time.Millisecond,
		polls:         polls,
		pollFailures:  pollFailures,
		pollLatency:   pollLatency,
	}, nil
}
