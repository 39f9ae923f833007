package eventmodels

type Candle struct {
	Timestamp int64   `json:"timestamp" csv:"timestamp"`
	Open      float64 `json:"open" csv:"open"`
	High      float64 `json:"high" csv:"high"`
	Low       float64 `json:"low" csv:"low"`
	Close     float64 `json:"close" csv:"close"`
}

// Roll opens the next bucket: the timestamp advances by one aggregation window
// and open, high and low restart at the previous close.
func (c *Candle) Roll(aggregationMillis int64) {
	c.Timestamp += aggregationMillis
	c.Open = c.Close
	c.High = c.Close
	c.Low = c.Close
}

func (c *Candle) Update(price float64) {
	c.Close = price

	if price > c.High {
		c.High = price
	}

	if price < c.Low {
		c.Low = price
	}
}
