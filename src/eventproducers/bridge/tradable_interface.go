package bridge

import (
	"context"
	"time"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
	"github.com/jiaming2012/tradable-embed/src/eventpubsub"
)

type ITradable interface {
	On(namespace string, eventName eventmodels.EventName, callback eventpubsub.Callback) error
	Off(namespace string, eventName ...eventmodels.EventName) error
	LastSnapshot() *eventmodels.AccountSnapshot
	SearchInstruments(ctx context.Context, query string) ([]*eventmodels.InstrumentSearchResult, error)
	GetCandles(ctx context.Context, instrumentID string, from, to time.Time, aggregationMinutes int) ([]*eventmodels.Candle, error)
}
