package eventmodels

import "strconv"

type Position struct {
	ID               string    `json:"id"`
	InstrumentID     string    `json:"instrumentId"`
	Side             OrderSide `json:"side"`
	Amount           float64   `json:"amount"`
	OpenPrice        float64   `json:"openPrice"`
	ClosePrice       float64   `json:"closePrice"`
	UnrealizedProfit float64   `json:"unrealizedProfit"`
	RealizedProfit   float64   `json:"realizedProfit"`
	LastModified     int64     `json:"lastModified"`
}

// OpenItemID identifies an open position by id, side and amount, so a partial
// close of the same position id produces a new key.
func (p *Position) OpenItemID() string {
	return p.ID + string(p.Side) + strconv.FormatFloat(p.Amount, 'f', -1, 64)
}

// ClosedItemID identifies a closed position by id and last modification time.
func (p *Position) ClosedItemID() string {
	return p.ID + strconv.FormatInt(p.LastModified, 10)
}
