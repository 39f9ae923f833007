package eventpubsub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

func Test_EventBus_On(t *testing.T) {
	noop := func(interface{}) {}

	t.Run("second registration for the same namespace is rejected", func(t *testing.T) {
		// arrange
		bus := NewEventBus()
		var calls []string
		require.NoError(t, bus.On("ns1", eventmodels.AccountUpdatedEvent, func(interface{}) { calls = append(calls, "cb1") }))

		// act
		err := bus.On("ns1", eventmodels.AccountUpdatedEvent, func(interface{}) { calls = append(calls, "cb2") })
		bus.Emit(eventmodels.AccountUpdatedEvent)

		// assert
		assert.True(t, errors.Is(err, eventmodels.ErrNamespaceTaken))
		assert.Equal(t, []string{"cb1"}, calls)
	})

	t.Run("unknown event name is rejected", func(t *testing.T) {
		bus := NewEventBus()
		err := bus.On("ns1", eventmodels.EventName("priceUpdated"), noop)
		assert.True(t, errors.Is(err, eventmodels.ErrInvalidEventName))
	})

	t.Run("invalid namespaces are rejected", func(t *testing.T) {
		bus := NewEventBus()
		for _, namespace := range []string{"", "1abc", "my-ns", "a b"} {
			err := bus.On(namespace, eventmodels.ErrorEvent, noop)
			assert.True(t, errors.Is(err, eventmodels.ErrInvalidNamespace), namespace)
		}
	})

	t.Run("nil callback is rejected", func(t *testing.T) {
		bus := NewEventBus()
		err := bus.On("ns1", eventmodels.ErrorEvent, nil)
		assert.True(t, errors.Is(err, eventmodels.ErrInvalidCallback))
		assert.Equal(t, 0, bus.SubscriberCount(eventmodels.ErrorEvent))
	})

	t.Run("the same namespace may register different events", func(t *testing.T) {
		bus := NewEventBus()
		assert.NoError(t, bus.On("ns1", eventmodels.ErrorEvent, noop))
		assert.NoError(t, bus.On("ns1", eventmodels.ExecutionEvent, noop))
	})
}

func Test_EventBus_Activation(t *testing.T) {
	t.Run("activation runs once per transition", func(t *testing.T) {
		// arrange
		bus := NewEventBus()
		activations, deactivations := 0, 0
		bus.OnActivate(eventmodels.AccountUpdatedEvent, func() { activations += 1 })
		bus.OnDeactivate(eventmodels.AccountUpdatedEvent, func() { deactivations += 1 })

		// act
		require.NoError(t, bus.On("a", eventmodels.AccountUpdatedEvent, func(interface{}) {}))
		require.NoError(t, bus.On("b", eventmodels.AccountUpdatedEvent, func(interface{}) {}))
		require.NoError(t, bus.Off("a", eventmodels.AccountUpdatedEvent))

		// assert
		assert.Equal(t, 1, activations)
		assert.Equal(t, 0, deactivations)

		// act
		require.NoError(t, bus.Off("b"))
		require.NoError(t, bus.Off("b"))

		// assert
		assert.Equal(t, 1, deactivations)

		// act
		require.NoError(t, bus.On("c", eventmodels.AccountUpdatedEvent, func(interface{}) {}))

		// assert
		assert.Equal(t, 2, activations)
	})

	t.Run("hooks of other events are not triggered", func(t *testing.T) {
		bus := NewEventBus()
		activations := 0
		bus.OnActivate(eventmodels.AccountUpdatedEvent, func() { activations += 1 })

		require.NoError(t, bus.On("a", eventmodels.ExecutionEvent, func(interface{}) {}))

		assert.Equal(t, 0, activations)
	})
}

func Test_EventBus_Off(t *testing.T) {
	t.Run("without an event name the namespace is removed everywhere", func(t *testing.T) {
		// arrange
		bus := NewEventBus()
		noop := func(interface{}) {}
		require.NoError(t, bus.On("ns1", eventmodels.ErrorEvent, noop))
		require.NoError(t, bus.On("ns1", eventmodels.ExecutionEvent, noop))
		require.NoError(t, bus.On("ns2", eventmodels.ExecutionEvent, noop))

		// act
		require.NoError(t, bus.Off("ns1"))

		// assert
		assert.Equal(t, 0, bus.SubscriberCount(eventmodels.ErrorEvent))
		assert.Equal(t, []string{"ns2"}, bus.Namespaces(eventmodels.ExecutionEvent))
	})

	t.Run("with an event name only that pair is removed", func(t *testing.T) {
		// arrange
		bus := NewEventBus()
		noop := func(interface{}) {}
		require.NoError(t, bus.On("ns1", eventmodels.ErrorEvent, noop))
		require.NoError(t, bus.On("ns1", eventmodels.ExecutionEvent, noop))

		// act
		require.NoError(t, bus.Off("ns1", eventmodels.ErrorEvent))

		// assert
		assert.Equal(t, 0, bus.SubscriberCount(eventmodels.ErrorEvent))
		assert.Equal(t, 1, bus.SubscriberCount(eventmodels.ExecutionEvent))
	})

	t.Run("invalid event name is rejected", func(t *testing.T) {
		bus := NewEventBus()
		err := bus.Off("ns1", eventmodels.EventName("nope"))
		assert.True(t, errors.Is(err, eventmodels.ErrInvalidEventName))
	})
}

func Test_EventBus_Emit(t *testing.T) {
	t.Run("callbacks run in registration order with the payload", func(t *testing.T) {
		// arrange
		bus := NewEventBus()
		var received []interface{}
		var order []string
		require.NoError(t, bus.On("first", eventmodels.TokenWillExpireEvent, func(data interface{}) {
			order = append(order, "first")
			received = append(received, data)
		}))
		require.NoError(t, bus.On("second", eventmodels.TokenWillExpireEvent, func(data interface{}) {
			order = append(order, "second")
			received = append(received, data)
		}))

		// act
		bus.Emit(eventmodels.TokenWillExpireEvent, 42)

		// assert
		assert.Equal(t, []string{"first", "second"}, order)
		assert.Equal(t, []interface{}{42, 42}, received)
	})

	t.Run("missing payload is delivered as nil", func(t *testing.T) {
		bus := NewEventBus()
		called := false
		require.NoError(t, bus.On("ns", eventmodels.EmbedReadyEvent, func(data interface{}) {
			called = true
			assert.Nil(t, data)
		}))

		bus.Emit(eventmodels.EmbedReadyEvent)

		assert.True(t, called)
	})

	t.Run("a panicking callback does not stop dispatch", func(t *testing.T) {
		// arrange
		bus := NewEventBus()
		secondCalled := false
		require.NoError(t, bus.On("broken", eventmodels.ErrorEvent, func(interface{}) { panic("boom") }))
		require.NoError(t, bus.On("healthy", eventmodels.ErrorEvent, func(interface{}) { secondCalled = true }))

		// act
		assert.NotPanics(t, func() { bus.Emit(eventmodels.ErrorEvent, errors.New("failed")) })

		// assert
		assert.True(t, secondCalled)
	})

	t.Run("callbacks may emit and unsubscribe", func(t *testing.T) {
		// arrange
		bus := NewEventBus()
		executions := 0
		require.NoError(t, bus.On("differ", eventmodels.AccountUpdatedEvent, func(interface{}) {
			bus.Emit(eventmodels.ExecutionEvent, &eventmodels.ExecutionResult{})
			assert.NoError(t, bus.Off("differ"))
		}))
		require.NoError(t, bus.On("listener", eventmodels.ExecutionEvent, func(interface{}) { executions += 1 }))

		// act
		bus.Emit(eventmodels.AccountUpdatedEvent)
		bus.Emit(eventmodels.AccountUpdatedEvent)

		// assert
		assert.Equal(t, 1, executions)
	})
}

func Test_EventBus_IsValidEvent(t *testing.T) {
	bus := NewEventBus()
	assert.True(t, bus.IsValidEvent("accountUpdated"))
	assert.True(t, bus.IsValidEvent("reLoginRequired"))
	assert.False(t, bus.IsValidEvent("AccountUpdated"))
	assert.False(t, bus.IsValidEvent(""))
}
