package eventmodels

type InstrumentType string

const (
	InstrumentTypeForex     InstrumentType = "FOREX"
	InstrumentTypeCFD       InstrumentType = "CFD"
	InstrumentTypeStock     InstrumentType = "STOCK"
	InstrumentTypeCrypto    InstrumentType = "CRYPTO"
	InstrumentTypeIndex     InstrumentType = "INDEX"
	InstrumentTypeCommodity InstrumentType = "COMMODITY"
)

type Instrument struct {
	InstrumentID           string         `json:"instrumentId" yaml:"instrumentId"`
	Symbol                 string         `json:"symbol" yaml:"symbol"`
	BrokerageAccountSymbol string         `json:"brokerageAccountSymbol" yaml:"brokerageAccountSymbol"`
	DisplayName            string         `json:"displayName" yaml:"displayName"`
	ShortDescription       string         `json:"shortDescription" yaml:"shortDescription"`
	Type                   InstrumentType `json:"type" yaml:"type"`
	PipPrecision           int            `json:"pipPrecision" yaml:"pipPrecision"`
	MinAmount              float64        `json:"minAmount" yaml:"minAmount"`
	MultipleOfMinAmount    bool           `json:"multipleOfMinAmount" yaml:"multipleOfMinAmount"`
}

type InstrumentSearchResult struct {
	InstrumentID           string         `json:"instrumentId"`
	Symbol                 string         `json:"symbol"`
	BrokerageAccountSymbol string         `json:"brokerageAccountSymbol"`
	DisplayName            string         `json:"displayName"`
	Type                   InstrumentType `json:"type"`
}
