package eventmodels

type Account struct {
	AccountID          string `json:"accountId"`
	BrokerageAccountID string `json:"brokerageAccountId"`
	DisplayName        string `json:"displayName"`
	Currency           string `json:"currencyIsoCode"`
	Broker             string `json:"broker"`
	FullInstrumentList bool   `json:"fullInstrumentList"`
}

type AccountMetrics struct {
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	FreeMargin  float64 `json:"freeMargin"`
	MarginLevel float64 `json:"marginLevel"`
	OpenProfit  float64 `json:"openProfit"`
	Currency    string  `json:"currency"`
}
