package models

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

type InstrumentField string

const (
	InstrumentFieldID                     InstrumentField = "instrumentId"
	InstrumentFieldSymbol                 InstrumentField = "symbol"
	InstrumentFieldBrokerageAccountSymbol InstrumentField = "brokerageAccountSymbol"
	InstrumentFieldDisplayName            InstrumentField = "displayName"
)

// excludedCurrencies are index and commodity codes that show up as the first
// or last three letters of six character CFD symbols.
var excludedCurrencies = map[string]struct{}{
	"spx": {}, "nas": {}, "ger": {}, "uk1": {}, "us3": {}, "us5": {}, "us2": {},
	"jpn": {}, "fra": {}, "esp": {}, "aus": {}, "hkg": {}, "eus": {},
	"xau": {}, "xag": {}, "xpt": {}, "xpd": {}, "wti": {}, "bre": {}, "ngs": {},
}

// InstrumentCache holds the instruments known for the selected account.
type InstrumentCache struct {
	mutex       sync.RWMutex
	index       map[string]*eventmodels.Instrument
	instruments []*eventmodels.Instrument
	symbols     []string
	categories  []eventmodels.InstrumentType
	currencies  []string
}

func (c *InstrumentCache) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.index = make(map[string]*eventmodels.Instrument)
	c.instruments = nil
	c.symbols = nil
	c.categories = nil
	c.currencies = nil
}

func (c *InstrumentCache) Add(instruments []*eventmodels.Instrument) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, instrument := range instruments {
		if instrument == nil {
			continue
		}

		if _, found := c.index[instrument.InstrumentID]; found {
			continue
		}

		c.index[instrument.InstrumentID] = instrument
		c.instruments = append(c.instruments, instrument)
		c.symbols = append(c.symbols, instrument.Symbol)
		c.addCategory(instrument.Type)

		if instrument.Type == eventmodels.InstrumentTypeForex || instrument.Type == eventmodels.InstrumentTypeCFD {
			symbol := strings.ReplaceAll(instrument.Symbol, "/", "")
			if len(symbol) == 6 {
				c.addCurrency(strings.ToLower(symbol[:3]))
				c.addCurrency(strings.ToLower(symbol[3:]))
			}
		}
	}
}

func (c *InstrumentCache) addCategory(category eventmodels.InstrumentType) {
	for _, existing := range c.categories {
		if existing == category {
			return
		}
	}

	c.categories = append(c.categories, category)
}

func (c *InstrumentCache) addCurrency(currency string) {
	if _, excluded := excludedCurrencies[currency]; excluded {
		return
	}

	for _, existing := range c.currencies {
		if existing == currency {
			return
		}
	}

	c.currencies = append(c.currencies, currency)
}

func (c *InstrumentCache) Has(instrumentID string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, found := c.index[instrumentID]
	return found
}

// FindBy returns the first cached instrument whose field equals value, ignoring
// case, or nil.
func (c *InstrumentCache) FindBy(field InstrumentField, value string) *eventmodels.Instrument {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	fold := cases.Fold()
	needle := fold.String(value)

	for _, instrument := range c.instruments {
		var candidate string
		switch field {
		case InstrumentFieldID:
			candidate = instrument.InstrumentID
		case InstrumentFieldSymbol:
			candidate = instrument.Symbol
		case InstrumentFieldBrokerageAccountSymbol:
			candidate = instrument.BrokerageAccountSymbol
		case InstrumentFieldDisplayName:
			candidate = instrument.DisplayName
		default:
			return nil
		}

		if fold.String(candidate) == needle {
			return instrument
		}
	}

	return nil
}

func (c *InstrumentCache) MissingIDs(instrumentIDs []string) []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	missing := []string{}
	for _, id := range instrumentIDs {
		if _, found := c.index[id]; !found {
			missing = append(missing, id)
		}
	}

	return missing
}

func (c *InstrumentCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.instruments)
}

func (c *InstrumentCache) Instruments() []*eventmodels.Instrument {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return append([]*eventmodels.Instrument(nil), c.instruments...)
}

func (c *InstrumentCache) Symbols() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return append([]string(nil), c.symbols...)
}

func (c *InstrumentCache) Categories() []eventmodels.InstrumentType {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return append([]eventmodels.InstrumentType(nil), c.categories...)
}

func (c *InstrumentCache) Currencies() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return append([]string(nil), c.currencies...)
}

func NewInstrumentCache() *InstrumentCache {
	return &InstrumentCache{
		index: make(map[string]*eventmodels.Instrument),
	}
}
