package eventconsumers

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
	"github.com/jiaming2012/tradable-embed/src/eventpubsub"
	"github.com/jiaming2012/tradable-embed/src/models"
)

// ExecutionNamespace is the bus namespace the differ registers under.
const ExecutionNamespace = "executionDiffer"

// DiffExecutions records every item of the snapshot in memory and returns the
// ones memory had not seen before. The first snapshot for an account only
// seeds memory and yields an empty result.
func DiffExecutions(memory *models.ExecutionMemory, snapshot *eventmodels.AccountSnapshot) *eventmodels.ExecutionResult {
	result := &eventmodels.ExecutionResult{
		Orders:          []string{},
		CancelledOrders: []string{},
		Positions:       []string{},
		ClosedPositions: []string{},
	}

	for _, order := range snapshot.Orders.Pending {
		if order == nil || order.IsMarket() {
			continue
		}

		if memory.RememberOrder(order.ItemID()) {
			result.Orders = append(result.Orders, order.ItemID())
		}
	}

	for _, order := range snapshot.Orders.RecentlyCancelled {
		if order == nil || order.IsMarket() {
			continue
		}

		if memory.RememberCancelledOrder(order.ItemID()) {
			result.CancelledOrders = append(result.CancelledOrders, order.ItemID())
		}
	}

	openPositionIDs := make(map[string]struct{}, len(snapshot.Positions.Open))
	for _, pos := range snapshot.Positions.Open {
		if pos == nil {
			continue
		}

		openPositionIDs[pos.ID] = struct{}{}

		itemID := pos.OpenItemID()
		if memory.RememberOpenPosition(pos.ID, itemID) {
			result.Positions = append(result.Positions, itemID)
		}
	}
	memory.RetainOpenPositions(openPositionIDs)

	for _, pos := range snapshot.Positions.RecentlyClosed {
		if pos == nil {
			continue
		}

		itemID := pos.ClosedItemID()
		if memory.RememberClosedPosition(itemID) {
			result.ClosedPositions = append(result.ClosedPositions, itemID)
		}
	}

	if !memory.IsSeeded() {
		memory.MarkSeeded()
		log.Debugf("DiffExecutions: seeded %d items for account %s", memory.Len(), memory.AccountID())

		return &eventmodels.ExecutionResult{
			Orders:          []string{},
			CancelledOrders: []string{},
			Positions:       []string{},
			ClosedPositions: []string{},
		}
	}

	return result
}

// ExecutionDiffer turns accountUpdated snapshots into execution events for the
// selected account.
type ExecutionDiffer struct {
	bus        *eventpubsub.EventBus
	mutex      sync.Mutex
	memory     *models.ExecutionMemory
	attached   bool
	executions metric.Int64Counter
}

func (d *ExecutionDiffer) Attach() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.attached {
		return nil
	}

	if err := d.bus.On(ExecutionNamespace, eventmodels.AccountUpdatedEvent, d.handleAccountUpdated); err != nil {
		return fmt.Errorf("ExecutionDiffer.Attach: %w", err)
	}

	if err := d.bus.On(ExecutionNamespace, eventmodels.AccountSwitchEvent, func(interface{}) { d.Reset() }); err != nil {
		d.bus.Off(ExecutionNamespace)
		return fmt.Errorf("ExecutionDiffer.Attach: %w", err)
	}

	d.attached = true
	return nil
}

func (d *ExecutionDiffer) Detach() {
	d.mutex.Lock()
	if !d.attached {
		d.mutex.Unlock()
		return
	}

	d.attached = false
	d.memory = nil
	d.mutex.Unlock()

	if err := d.bus.Off(ExecutionNamespace); err != nil {
		log.Errorf("ExecutionDiffer.Detach: %v", err)
	}
}

func (d *ExecutionDiffer) IsAttached() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.attached
}

// Reset discards execution memory. The next snapshot seeds it again.
func (d *ExecutionDiffer) Reset() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.memory = nil
}

// Process diffs snapshot against memory and emits an execution event when
// something new was observed.
func (d *ExecutionDiffer) Process(snapshot *eventmodels.AccountSnapshot) *eventmodels.ExecutionResult {
	d.mutex.Lock()
	if d.memory == nil || d.memory.AccountID() != snapshot.AccountID {
		d.memory = models.NewExecutionMemory(snapshot.AccountID)
	}

	result := DiffExecutions(d.memory, snapshot)
	d.mutex.Unlock()

	if result.Total() > 0 {
		log.Infof("ExecutionDiffer: %d new executions on account %s", result.Total(), snapshot.AccountID)
		if d.executions != nil {
			d.executions.Add(context.Background(), int64(result.Total()), metric.WithAttributes(attribute.String("account.id", snapshot.AccountID)))
		}

		d.bus.Emit(eventmodels.ExecutionEvent, result)
	}

	return result
}

func (d *ExecutionDiffer) handleAccountUpdated(data interface{}) {
	snapshot, ok := data.(*eventmodels.AccountSnapshot)
	if !ok || snapshot == nil {
		log.Warnf("ExecutionDiffer: unexpected accountUpdated payload %T", data)
		return
	}

	d.Process(snapshot)
}

func NewExecutionDiffer(bus *eventpubsub.EventBus) *ExecutionDiffer {
	executions, err := otel.Meter("github.com/jiaming2012/tradable-embed/src/eventconsumers").Int64Counter("embed.executions", metric.WithDescription("new executions observed"))
	if err != nil {
		log.Warnf("NewExecutionDiffer: failed to create counter: %v", err)
	}

	return &ExecutionDiffer{
		bus:        bus,
		executions: executions,
	}
}
