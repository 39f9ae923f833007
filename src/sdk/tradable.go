package sdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/tradable-embed/src/eventconsumers"
	"github.com/jiaming2012/tradable-embed/src/eventmodels"
	"github.com/jiaming2012/tradable-embed/src/eventpubsub"
	"github.com/jiaming2012/tradable-embed/src/models"
	"github.com/jiaming2012/tradable-embed/src/worker"
)

var reservedNamespaces = map[string]struct{}{
	eventconsumers.ExecutionNamespace: {},
	eventconsumers.CandleNamespace:    {},
}

// Tradable is one embedding context: an authenticated session, the selected
// account and every component that follows it.
type Tradable struct {
	config        *eventmodels.EmbedConfig
	client        eventmodels.IAccountApiClient
	store         eventmodels.ITokenStore
	bus           *eventpubsub.EventBus
	instruments   *models.InstrumentCache
	subscriptions *models.SubscriptionRegistry
	poller        *worker.AccountUpdatePoller
	tokenMonitor  *worker.TokenMonitor
	executions    *eventconsumers.ExecutionDiffer
	candles       *eventconsumers.CandleUpdater
	wg            *sync.WaitGroup

	mutex    sync.Mutex
	accounts []*eventmodels.Account
	account  *eventmodels.Account
	cancel   context.CancelFunc
}

// Start loads the session, selects the configured account (or the first one)
// and enables polling. It emits embedStarting first and embedReady on success.
// It can be called again after a failed start, e.g. once the host stored a
// fresh token.
func (t *Tradable) Start(ctx context.Context) error {
	t.bus.Emit(eventmodels.EmbedStartingEvent)

	t.mutex.Lock()
	if t.cancel == nil {
		var loopCtx context.Context
		loopCtx, t.cancel = context.WithCancel(ctx)
		t.poller.Attach(loopCtx)
		t.tokenMonitor.Start(loopCtx)
	}
	t.mutex.Unlock()

	state, err := t.store.Get()
	if err != nil {
		return fmt.Errorf("Tradable.Start: failed to read token: %w", err)
	}

	if state == nil || state.Token == "" || state.IsExpired(time.Now()) {
		log.Warn("Tradable.Start: no valid access token, login required")
		t.bus.Emit(eventmodels.ReLoginRequiredEvent)
		return fmt.Errorf("Tradable.Start: no valid access token: %w", eventmodels.ErrTradingDisabled)
	}

	accounts, err := t.client.GetAccounts(ctx)
	if err != nil {
		t.reportError(err)
		return fmt.Errorf("Tradable.Start: failed to fetch accounts: %w", err)
	}

	if len(accounts) == 0 {
		return fmt.Errorf("Tradable.Start: session has no accounts: %w", eventmodels.ErrNoAccountSelected)
	}

	t.mutex.Lock()
	t.accounts = accounts
	t.mutex.Unlock()

	accountID := t.config.AccountID
	if accountID == "" {
		accountID = accounts[0].AccountID
	}

	if err := t.SelectAccount(ctx, accountID); err != nil {
		return fmt.Errorf("Tradable.Start: %w", err)
	}

	t.EnableTrading(true)

	log.Infof("Tradable: ready on account %s", accountID)
	t.bus.Emit(eventmodels.EmbedReadyEvent)

	return nil
}

// SelectAccount switches to accountID. Instruments, execution memory and
// candle updates of the previous account are discarded.
func (t *Tradable) SelectAccount(ctx context.Context, accountID string) error {
	t.mutex.Lock()
	var account *eventmodels.Account
	for _, a := range t.accounts {
		if a.AccountID == accountID {
			account = a
			break
		}
	}

	if account == nil {
		t.mutex.Unlock()
		return fmt.Errorf("Tradable.SelectAccount: unknown account %q: %w", accountID, eventmodels.ErrInvalidArgument)
	}

	t.account = account
	t.mutex.Unlock()

	t.candles.StopUpdates()
	t.instruments.Reset()
	t.executions.Reset()
	t.poller.SetAccount(account)

	if account.FullInstrumentList {
		instruments, err := t.client.GetInstruments(ctx, account.AccountID, nil)
		if err != nil {
			t.reportError(err)
			return fmt.Errorf("Tradable.SelectAccount: failed to fetch instruments for %s: %w", accountID, err)
		}

		if t.isSelected(account) {
			t.instruments.Add(instruments)
		}
	}

	log.WithFields(log.Fields{
		"account": account.AccountID,
		"broker":  account.Broker,
	}).Info("Tradable: account selected")

	t.bus.Emit(eventmodels.AccountSwitchEvent)

	return nil
}

func (t *Tradable) isSelected(account *eventmodels.Account) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.account == account
}

func (t *Tradable) EnableTrading(enabled bool) {
	t.poller.SetTradingEnabled(enabled)
}

func (t *Tradable) TradingEnabled() bool {
	return t.poller.TradingEnabled()
}

// SignOut forgets the token, disables polling and asks the host to log in again.
func (t *Tradable) SignOut() error {
	t.EnableTrading(false)
	t.candles.StopUpdates()

	if err := t.store.Clear(); err != nil {
		return fmt.Errorf("Tradable.SignOut: %w", err)
	}

	t.bus.Emit(eventmodels.ReLoginRequiredEvent)
	return nil
}

// On registers callback for eventName. Registering for execution starts
// diffing account snapshots.
func (t *Tradable) On(namespace string, eventName eventmodels.EventName, callback eventpubsub.Callback) error {
	if _, reserved := reservedNamespaces[namespace]; reserved {
		return fmt.Errorf("Tradable.On: %q is reserved: %w", namespace, eventmodels.ErrNamespaceTaken)
	}

	if err := t.bus.On(namespace, eventName, callback); err != nil {
		return fmt.Errorf("Tradable.On: %w", err)
	}

	if eventName == eventmodels.ExecutionEvent {
		if err := t.executions.Attach(); err != nil {
			t.bus.Off(namespace, eventName)
			return fmt.Errorf("Tradable.On: %w", err)
		}
	}

	return nil
}

func (t *Tradable) Off(namespace string, eventName ...eventmodels.EventName) error {
	if _, reserved := reservedNamespaces[namespace]; reserved {
		return fmt.Errorf("Tradable.Off: %q is reserved: %w", namespace, eventmodels.ErrInvalidNamespace)
	}

	if err := t.bus.Off(namespace, eventName...); err != nil {
		return fmt.Errorf("Tradable.Off: %w", err)
	}

	if t.bus.SubscriberCount(eventmodels.ExecutionEvent) == 0 {
		t.executions.Detach()
	}

	return nil
}

func (t *Tradable) IsValidEvent(name string) bool {
	return t.bus.IsValidEvent(name)
}

func (t *Tradable) SetUpdateInterval(millis int) error {
	if err := t.poller.SetUpdateInterval(millis); err != nil {
		return fmt.Errorf("Tradable.SetUpdateInterval: %w", err)
	}

	return nil
}

func (t *Tradable) UpdateInterval() time.Duration {
	return t.poller.UpdateInterval()
}

func (t *Tradable) SubscribePrices(subscriberID, instrumentID string) error {
	if err := t.subscriptions.Subscribe(subscriberID, instrumentID); err != nil {
		return fmt.Errorf("Tradable.SubscribePrices: %w", err)
	}

	return nil
}

func (t *Tradable) UnsubscribePrices(subscriberID, instrumentID string) {
	t.subscriptions.Unsubscribe(subscriberID, instrumentID)
}

func (t *Tradable) StartCandleUpdates(ctx context.Context, instrumentID string, from time.Time, aggregationMinutes int, callback eventconsumers.CandleCallback) error {
	account, err := t.selectedAccount()
	if err != nil {
		return fmt.Errorf("Tradable.StartCandleUpdates: %w", err)
	}

	if err := t.candles.StartUpdates(ctx, account.AccountID, instrumentID, from, aggregationMinutes, callback); err != nil {
		return fmt.Errorf("Tradable.StartCandleUpdates: %w", err)
	}

	return nil
}

func (t *Tradable) StopCandleUpdates() {
	t.candles.StopUpdates()
}

func (t *Tradable) SearchInstruments(ctx context.Context, query string) ([]*eventmodels.InstrumentSearchResult, error) {
	account, err := t.selectedAccount()
	if err != nil {
		return nil, fmt.Errorf("Tradable.SearchInstruments: %w", err)
	}

	results, err := t.client.SearchInstruments(ctx, account.AccountID, query)
	if err != nil {
		t.reportError(err)
		return nil, fmt.Errorf("Tradable.SearchInstruments: %w", err)
	}

	return results, nil
}

// GetCandles fetches historical candles for the selected account without
// starting live updates.
func (t *Tradable) GetCandles(ctx context.Context, instrumentID string, from, to time.Time, aggregationMinutes int) ([]*eventmodels.Candle, error) {
	account, err := t.selectedAccount()
	if err != nil {
		return nil, fmt.Errorf("Tradable.GetCandles: %w", err)
	}

	if aggregationMinutes <= 0 {
		return nil, fmt.Errorf("Tradable.GetCandles: aggregation must be positive, got %d: %w", aggregationMinutes, eventmodels.ErrInvalidArgument)
	}

	candles, err := t.client.GetCandles(ctx, account.AccountID, instrumentID, from, to, aggregationMinutes)
	if err != nil {
		t.reportError(err)
		return nil, fmt.Errorf("Tradable.GetCandles: %w", err)
	}

	return candles, nil
}

func (t *Tradable) GetInstrument(instrumentID string) *eventmodels.Instrument {
	return t.instruments.FindBy(models.InstrumentFieldID, instrumentID)
}

func (t *Tradable) GetInstrumentBy(field models.InstrumentField, value string) *eventmodels.Instrument {
	return t.instruments.FindBy(field, value)
}

func (t *Tradable) Instruments() *models.InstrumentCache {
	return t.instruments
}

func (t *Tradable) Accounts() []*eventmodels.Account {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return append([]*eventmodels.Account(nil), t.accounts...)
}

func (t *Tradable) SelectedAccount() *eventmodels.Account {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.account
}

func (t *Tradable) selectedAccount() (*eventmodels.Account, error) {
	account := t.SelectedAccount()
	if account == nil {
		return nil, eventmodels.ErrNoAccountSelected
	}

	return account, nil
}

func (t *Tradable) LastSnapshot() *eventmodels.AccountSnapshot {
	return t.poller.LastSnapshot()
}

// Close stops every background loop and waits for them and for running polls.
func (t *Tradable) Close() {
	t.mutex.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mutex.Unlock()

	if cancel != nil {
		cancel()
	}

	t.poller.Stop()
	t.tokenMonitor.Stop()
	t.candles.StopUpdates()
	t.executions.Detach()
	t.wg.Wait()
	t.poller.Wait()
}

func (t *Tradable) reportError(err error) {
	log.Warn(err)

	var apiErr *eventmodels.ApiError
	if errors.As(err, &apiErr) {
		if apiErr.IsUnauthorized() {
			t.handleUnauthorized()
		}

		t.bus.Emit(eventmodels.ErrorEvent, apiErr)
		return
	}

	t.bus.Emit(eventmodels.ErrorEvent, err)
}

func (t *Tradable) handleUnauthorized() {
	t.EnableTrading(false)
	t.bus.Emit(eventmodels.ReLoginRequiredEvent)
}

// New wires the components of one embedding context. Nothing runs until Start.
func New(config *eventmodels.EmbedConfig, client eventmodels.IAccountApiClient, store eventmodels.ITokenStore) (*Tradable, error) {
	if config == nil {
		config = eventmodels.NewEmbedConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("sdk.New: %w", err)
	}

	wg := &sync.WaitGroup{}
	bus := eventpubsub.NewEventBus()
	instruments := models.NewInstrumentCache()
	subscriptions := models.NewSubscriptionRegistry()

	poller, err := worker.NewAccountUpdatePoller(wg, client, bus, instruments, subscriptions, config.UpdateIntervalMillis)
	if err != nil {
		return nil, fmt.Errorf("sdk.New: %w", err)
	}

	t := &Tradable{
		config:        config,
		client:        client,
		store:         store,
		bus:           bus,
		instruments:   instruments,
		subscriptions: subscriptions,
		poller:        poller,
		tokenMonitor:  worker.NewTokenMonitor(wg, store, bus, config.TokenWillExpireThreshold(), config.TokenCheckInterval(), nil),
		executions:    eventconsumers.NewExecutionDiffer(bus),
		candles:       eventconsumers.NewCandleUpdater(client, bus, subscriptions, nil),
		wg:            wg,
	}

	poller.SetUnauthorizedHandler(func() {
		t.handleUnauthorized()
	})

	t.tokenMonitor.SetExpiredHandler(func() {
		t.EnableTrading(false)
	})

	return t, nil
}
