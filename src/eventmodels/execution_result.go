package eventmodels

// ExecutionResult holds the item ids first observed by the latest diff.
type ExecutionResult struct {
	Orders          []string `json:"orders"`
	CancelledOrders []string `json:"cancelledOrders"`
	Positions       []string `json:"positions"`
	ClosedPositions []string `json:"closedPositions"`
}

func (r *ExecutionResult) Total() int {
	return len(r.Orders) + len(r.CancelledOrders) + len(r.Positions) + len(r.ClosedPositions)
}
