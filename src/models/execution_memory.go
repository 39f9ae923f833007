package models

// ExecutionMemory records every item id already notified for one account.
type ExecutionMemory struct {
	accountID        string
	seeded           bool
	orders           map[string]struct{}
	cancelledOrders  map[string]struct{}
	positions        map[string]struct{}
	closedPositions  map[string]struct{}
	openPositionKeys map[string]string
}

func (m *ExecutionMemory) AccountID() string {
	return m.accountID
}

// IsSeeded is false until the first snapshot for the account was consumed.
func (m *ExecutionMemory) IsSeeded() bool {
	return m.seeded
}

func (m *ExecutionMemory) MarkSeeded() {
	m.seeded = true
}

func (m *ExecutionMemory) RememberOrder(itemID string) bool {
	return remember(m.orders, itemID)
}

func (m *ExecutionMemory) RememberCancelledOrder(itemID string) bool {
	return remember(m.cancelledOrders, itemID)
}

func (m *ExecutionMemory) RememberClosedPosition(itemID string) bool {
	return remember(m.closedPositions, itemID)
}

// RememberOpenPosition records the current key of an open position. A previous
// key for the same position id is purged first, so a partial close followed by
// a return to an earlier amount is detected again.
func (m *ExecutionMemory) RememberOpenPosition(positionID, itemID string) bool {
	if previous, found := m.openPositionKeys[positionID]; found && previous != itemID {
		delete(m.positions, previous)
	}

	m.openPositionKeys[positionID] = itemID
	return remember(m.positions, itemID)
}

// RetainOpenPositions purges the keys of positions that are no longer open.
func (m *ExecutionMemory) RetainOpenPositions(positionIDs map[string]struct{}) {
	for positionID, itemID := range m.openPositionKeys {
		if _, open := positionIDs[positionID]; open {
			continue
		}

		delete(m.positions, itemID)
		delete(m.openPositionKeys, positionID)
	}
}

func (m *ExecutionMemory) HasOpenPosition(itemID string) bool {
	_, found := m.positions[itemID]
	return found
}

func (m *ExecutionMemory) Len() int {
	return len(m.orders) + len(m.cancelledOrders) + len(m.positions) + len(m.closedPositions)
}

func remember(set map[string]struct{}, itemID string) bool {
	if _, found := set[itemID]; found {
		return false
	}

	set[itemID] = struct{}{}
	return true
}

func NewExecutionMemory(accountID string) *ExecutionMemory {
	return &ExecutionMemory{
		accountID:        accountID,
		orders:           make(map[string]struct{}),
		cancelledOrders:  make(map[string]struct{}),
		positions:        make(map[string]struct{}),
		closedPositions:  make(map[string]struct{}),
		openPositionKeys: make(map[string]string),
	}
}
