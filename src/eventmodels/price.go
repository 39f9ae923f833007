package eventmodels

type Price struct {
	InstrumentID string   `json:"instrumentId"`
	Bid          *float64 `json:"bid,omitempty"`
	Ask          *float64 `json:"ask,omitempty"`
	Spread       float64  `json:"spread"`
}

func (p *Price) HasBid() bool {
	return p.Bid != nil
}
