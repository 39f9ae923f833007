package eventmodels

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

type Order struct {
	ID           string    `json:"id"`
	InstrumentID string    `json:"instrumentId"`
	Side         OrderSide `json:"side"`
	Amount       float64   `json:"amount"`
	Type         OrderType `json:"type"`
	Price        float64   `json:"price"`
	LastModified int64     `json:"lastModified"`
}

// ItemID identifies the order in execution memory.
func (o *Order) ItemID() string {
	return o.ID
}

func (o *Order) IsMarket() bool {
	return o.Type == OrderTypeMarket
}
