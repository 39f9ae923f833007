package eventmodels

type SnapshotPositions struct {
	Open           []*Position `json:"open"`
	RecentlyClosed []*Position `json:"recentlyClosed"`
}

type SnapshotOrders struct {
	Pending           []*Order `json:"pending"`
	RecentlyCancelled []*Order `json:"recentlyCancelled"`
	RecentlyExecuted  []*Order `json:"recentlyExecuted"`
}

// AccountSnapshot is one consolidated read of an account's orders, positions,
// metrics and subscribed prices.
type AccountSnapshot struct {
	AccountID string            `json:"accountId"`
	Positions SnapshotPositions `json:"positions"`
	Orders    SnapshotOrders    `json:"orders"`
	Prices    []*Price          `json:"prices"`
	Metrics   AccountMetrics    `json:"metrics"`
}

func (s *AccountSnapshot) FindPrice(instrumentID string) *Price {
	for _, p := range s.Prices {
		if p != nil && p.InstrumentID == instrumentID {
			return p
		}
	}

	return nil
}

// ReferencedInstrumentIDs returns the de-duplicated instrument ids of open
// positions and pending orders, in order of first appearance.
func (s *AccountSnapshot) ReferencedInstrumentIDs() []string {
	seen := make(map[string]struct{})
	var ids []string

	add := func(id string) {
		if id == "" {
			return
		}

		if _, found := seen[id]; found {
			return
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, pos := range s.Positions.Open {
		if pos != nil {
			add(pos.InstrumentID)
		}
	}

	for _, order := range s.Orders.Pending {
		if order != nil {
			add(order.InstrumentID)
		}
	}

	return ids
}
