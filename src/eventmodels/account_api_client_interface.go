package eventmodels

import (
	"context"
	"time"
)

// IAccountApiClient issues authenticated requests against the account api.
// Every error returned is an *ApiError.
type IAccountApiClient interface {
	GetAccounts(ctx context.Context) ([]*Account, error)
	GetSnapshot(ctx context.Context, accountID string, instrumentIDs []string) (*AccountSnapshot, error)
	GetInstruments(ctx context.Context, accountID string, instrumentIDs []string) ([]*Instrument, error)
	GetCandles(ctx context.Context, accountID, instrumentID string, from, to time.Time, aggregationMinutes int) ([]*Candle, error)
	SearchInstruments(ctx context.Context, accountID, query string) ([]*InstrumentSearchResult, error)
}
