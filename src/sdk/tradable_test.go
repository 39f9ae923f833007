package sdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/tradable-embed/src/eventconsumers"
	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

type eventRecorder struct {
	mutex  sync.Mutex
	events []eventmodels.EventName
}

func (r *eventRecorder) record(name eventmodels.EventName) func(interface{}) {
	return func(interface{}) {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		r.events = append(r.events, name)
	}
}

func (r *eventRecorder) Events() []eventmodels.EventName {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]eventmodels.EventName(nil), r.events...)
}

func newTestTradable(t *testing.T, token *eventmodels.TokenState) (*Tradable, *eventmodels.MockAccountApiClient, *eventmodels.MockTokenStore) {
	client := eventmodels.NewMockAccountApiClient()
	client.SetAccounts(
		&eventmodels.Account{AccountID: "acc-1", Broker: "oanda", FullInstrumentList: true},
		&eventmodels.Account{AccountID: "acc-2", Broker: "fxcm"},
	)
	client.AddInstruments(
		&eventmodels.Instrument{InstrumentID: "EURUSD", Symbol: "EUR/USD", Type: eventmodels.InstrumentTypeForex},
		&eventmodels.Instrument{InstrumentID: "USDJPY", Symbol: "USD/JPY", Type: eventmodels.InstrumentTypeForex},
	)

	store := eventmodels.NewMockTokenStore(token)

	config := eventmodels.NewEmbedConfig()
	config.UpdateIntervalMillis = 60000

	tradable, err := New(config, client, store)
	require.NoError(t, err)
	t.Cleanup(tradable.Close)

	return tradable, client, store
}

func validToken() *eventmodels.TokenState {
	return &eventmodels.TokenState{Token: "abc", ExpiresAt: time.Now().Add(time.Hour)}
}

func Test_Tradable_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("selects the first account and announces readiness", func(t *testing.T) {
		// arrange
		tradable, _, _ := newTestTradable(t, validToken())
		recorder := &eventRecorder{}
		for _, name := range []eventmodels.EventName{eventmodels.EmbedStartingEvent, eventmodels.AccountSwitchEvent, eventmodels.EmbedReadyEvent} {
			require.NoError(t, tradable.On("test", name, recorder.record(name)))
		}

		// act
		err := tradable.Start(ctx)

		// assert
		require.NoError(t, err)
		assert.Equal(t, []eventmodels.EventName{eventmodels.EmbedStartingEvent, eventmodels.AccountSwitchEvent, eventmodels.EmbedReadyEvent}, recorder.Events())
		assert.Equal(t, "acc-1", tradable.SelectedAccount().AccountID)
		assert.True(t, tradable.TradingEnabled())
		assert.Equal(t, 2, tradable.Instruments().Len())
		assert.ElementsMatch(t, []string{"eur", "usd", "jpy"}, tradable.Instruments().Currencies())
	})

	t.Run("missing token asks for a new login", func(t *testing.T) {
		// arrange
		tradable, _, _ := newTestTradable(t, nil)
		recorder := &eventRecorder{}
		require.NoError(t, tradable.On("test", eventmodels.ReLoginRequiredEvent, recorder.record(eventmodels.ReLoginRequiredEvent)))

		// act
		err := tradable.Start(ctx)

		// assert
		assert.True(t, errors.Is(err, eventmodels.ErrTradingDisabled))
		assert.Equal(t, []eventmodels.EventName{eventmodels.ReLoginRequiredEvent}, recorder.Events())
		assert.False(t, tradable.TradingEnabled())
	})

	t.Run("start can be retried after logging in", func(t *testing.T) {
		// arrange
		tradable, _, store := newTestTradable(t, nil)
		require.Error(t, tradable.Start(ctx))

		// act
		require.NoError(t, store.Set(validToken()))
		err := tradable.Start(ctx)

		// assert
		require.NoError(t, err)
		assert.True(t, tradable.TradingEnabled())
	})
}

func Test_Tradable_SelectAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown accounts are rejected", func(t *testing.T) {
		tradable, _, _ := newTestTradable(t, validToken())
		require.NoError(t, tradable.Start(ctx))

		err := tradable.SelectAccount(ctx, "nope")

		assert.True(t, errors.Is(err, eventmodels.ErrInvalidArgument))
		assert.Equal(t, "acc-1", tradable.SelectedAccount().AccountID)
	})

	t.Run("accounts without a full list start with an empty cache", func(t *testing.T) {
		// arrange
		tradable, client, _ := newTestTradable(t, validToken())
		require.NoError(t, tradable.Start(ctx))

		// act
		err := tradable.SelectAccount(ctx, "acc-2")

		// assert
		require.NoError(t, err)
		assert.Equal(t, 0, tradable.Instruments().Len())
		assert.Len(t, client.InstrumentCalls(), 1)
	})
}

func Test_Tradable_On(t *testing.T) {
	ctx := context.Background()

	t.Run("internal namespaces are reserved", func(t *testing.T) {
		tradable, _, _ := newTestTradable(t, validToken())

		err := tradable.On(eventconsumers.ExecutionNamespace, eventmodels.ErrorEvent, func(interface{}) {})
		assert.True(t, errors.Is(err, eventmodels.ErrNamespaceTaken))

		err = tradable.Off(eventconsumers.CandleNamespace)
		assert.True(t, errors.Is(err, eventmodels.ErrInvalidNamespace))
	})

	t.Run("execution subscribers receive new orders", func(t *testing.T) {
		// arrange
		tradable, client, _ := newTestTradable(t, validToken())
		require.NoError(t, tradable.Start(ctx))

		var results []*eventmodels.ExecutionResult
		require.NoError(t, tradable.On("widget", eventmodels.ExecutionEvent, func(data interface{}) {
			results = append(results, data.(*eventmodels.ExecutionResult))
		}))

		o1 := &eventmodels.Order{ID: "o1", Type: eventmodels.OrderTypeLimit}
		o2 := &eventmodels.Order{ID: "o2", Type: eventmodels.OrderTypeLimit}
		client.QueueSnapshots(
			&eventmodels.AccountSnapshot{AccountID: "acc-1", Orders: eventmodels.SnapshotOrders{Pending: []*eventmodels.Order{o1}}},
			&eventmodels.AccountSnapshot{AccountID: "acc-1", Orders: eventmodels.SnapshotOrders{Pending: []*eventmodels.Order{o1, o2}}},
		)

		// act
		for i := 0; i < 2; i++ {
			require.True(t, tradable.poller.Tick(ctx))
			tradable.poller.Wait()
		}

		// assert
		require.Len(t, results, 1)
		assert.Equal(t, []string{"o2"}, results[0].Orders)
		assert.Equal(t, "acc-1", tradable.LastSnapshot().AccountID)
	})

	t.Run("removing the last execution subscriber detaches the differ", func(t *testing.T) {
		tradable, _, _ := newTestTradable(t, validToken())
		require.NoError(t, tradable.On("widget", eventmodels.ExecutionEvent, func(interface{}) {}))
		require.True(t, tradable.executions.IsAttached())

		require.NoError(t, tradable.Off("widget"))

		assert.False(t, tradable.executions.IsAttached())
	})
}

func Test_Tradable_Unauthorized(t *testing.T) {
	// arrange
	ctx := context.Background()
	tradable, client, _ := newTestTradable(t, validToken())
	require.NoError(t, tradable.Start(ctx))

	recorder := &eventRecorder{}
	require.NoError(t, tradable.On("test", eventmodels.AccountUpdatedEvent, recorder.record(eventmodels.AccountUpdatedEvent)))
	require.NoError(t, tradable.On("test", eventmodels.ReLoginRequiredEvent, recorder.record(eventmodels.ReLoginRequiredEvent)))
	require.NoError(t, tradable.On("test", eventmodels.ErrorEvent, recorder.record(eventmodels.ErrorEvent)))
	client.SetSnapshotError(eventmodels.NewApiError(http.StatusUnauthorized, "invalid_token", "revoked", nil))

	// act
	require.True(t, tradable.poller.Tick(ctx))
	tradable.poller.Wait()

	// assert
	assert.Equal(t, []eventmodels.EventName{eventmodels.ReLoginRequiredEvent, eventmodels.ErrorEvent}, recorder.Events())
	assert.False(t, tradable.TradingEnabled())
	assert.False(t, tradable.poller.Tick(ctx))
}

func Test_Tradable_SignOut(t *testing.T) {
	// arrange
	ctx := context.Background()
	tradable, _, store := newTestTradable(t, validToken())
	require.NoError(t, tradable.Start(ctx))
	recorder := &eventRecorder{}
	require.NoError(t, tradable.On("test", eventmodels.ReLoginRequiredEvent, recorder.record(eventmodels.ReLoginRequiredEvent)))

	// act
	err := tradable.SignOut()

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, store.Clears())
	assert.False(t, tradable.TradingEnabled())
	assert.Equal(t, []eventmodels.EventName{eventmodels.ReLoginRequiredEvent}, recorder.Events())
}

func Test_Tradable_Candles(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a selected account", func(t *testing.T) {
		tradable, _, _ := newTestTradable(t, validToken())

		err := tradable.StartCandleUpdates(ctx, "EURUSD", time.Now(), 1, func([]*eventmodels.Candle) {})

		assert.True(t, errors.Is(err, eventmodels.ErrNoAccountSelected))
	})

	t.Run("subscribes the instrument for prices until stopped", func(t *testing.T) {
		// arrange
		tradable, _, _ := newTestTradable(t, validToken())
		require.NoError(t, tradable.Start(ctx))

		// act
		require.NoError(t, tradable.StartCandleUpdates(ctx, "EURUSD", time.Now().Add(-time.Hour), 5, func([]*eventmodels.Candle) {}))
		subscribed := tradable.subscriptions.IsSubscribed("EURUSD")
		tradable.StopCandleUpdates()
		tradable.StopCandleUpdates()

		// assert
		assert.True(t, subscribed)
		assert.False(t, tradable.subscriptions.IsSubscribed("EURUSD"))
	})
}

func Test_Tradable_SetUpdateInterval(t *testing.T) {
	tradable, _, _ := newTestTradable(t, validToken())

	assert.True(t, errors.Is(tradable.SetUpdateInterval(0), eventmodels.ErrInvalidArgument))
	require.NoError(t, tradable.SetUpdateInterval(250))
	assert.Equal(t, 250*time.Millisecond, tradable.UpdateInterval())
}

func Test_Tradable_Close(t *testing.T) {
	// arrange
	ctx := context.Background()
	tradable, client, _ := newTestTradable(t, validToken())
	require.NoError(t, tradable.Start(ctx))
	require.NoError(t, tradable.On("widget", eventmodels.AccountUpdatedEvent, func(interface{}) {}))
	require.True(t, tradable.tokenMonitor.Running())

	// act
	done := make(chan struct{})
	go func() {
		assert.True(t, tradable.poller.Tick(ctx))
		tradable.poller.Wait()
		tradable.Close()
		close(done)
	}()

	// assert
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while the token monitor was running")
	}

	assert.Equal(t, 1, client.SnapshotCalls())
	assert.False(t, tradable.poller.Running())
	assert.False(t, tradable.tokenMonitor.Running())
}
