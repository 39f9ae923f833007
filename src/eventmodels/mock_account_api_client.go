package eventmodels

import (
	"context"
	"net/http"
	"sync"
	"time"
)

type MockAccountApiClient struct {
	mu               sync.Mutex
	accounts         []*Account
	snapshots        []*AccountSnapshot
	snapshotErr      error
	instruments      map[string]*Instrument
	candles          []*Candle
	searchResults    []*InstrumentSearchResult
	snapshotGate     chan struct{}
	snapshotCalls    int
	snapshotRequests [][]string
	instrumentCalls  [][]string
	candleCalls      int
}

func (m *MockAccountApiClient) GetAccounts(ctx context.Context) ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.accounts, nil
}

// GetSnapshot returns the queued snapshots in order, repeating the last one.
// When a gate is installed the call blocks until the gate releases it.
func (m *MockAccountApiClient) GetSnapshot(ctx context.Context, accountID string, instrumentIDs []string) (*AccountSnapshot, error) {
	m.mu.Lock()
	m.snapshotCalls += 1
	m.snapshotRequests = append(m.snapshotRequests, append([]string(nil), instrumentIDs...))
	gate := m.snapshotGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, NewApiError(http.StatusRequestTimeout, "cancelled", "request cancelled", ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}

	if len(m.snapshots) == 0 {
		return &AccountSnapshot{AccountID: accountID}, nil
	}

	snapshot := m.snapshots[0]
	if len(m.snapshots) > 1 {
		m.snapshots = m.snapshots[1:]
	}

	return snapshot, nil
}

func (m *MockAccountApiClient) GetInstruments(ctx context.Context, accountID string, instrumentIDs []string) ([]*Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.instrumentCalls = append(m.instrumentCalls, append([]string(nil), instrumentIDs...))

	var result []*Instrument
	if len(instrumentIDs) == 0 {
		for _, instrument := range m.instruments {
			result = append(result, instrument)
		}
		return result, nil
	}

	for _, id := range instrumentIDs {
		if instrument, found := m.instruments[id]; found {
			result = append(result, instrument)
		}
	}

	return result, nil
}

func (m *MockAccountApiClient) GetCandles(ctx context.Context, accountID, instrumentID string, from, to time.Time, aggregationMinutes int) ([]*Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.candleCalls += 1

	result := make([]*Candle, 0, len(m.candles))
	for _, c := range m.candles {
		if c == nil {
			result = append(result, nil)
			continue
		}

		copy := *c
		result = append(result, &copy)
	}

	return result, nil
}

func (m *MockAccountApiClient) SearchInstruments(ctx context.Context, accountID, query string) ([]*InstrumentSearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.searchResults, nil
}

func (m *MockAccountApiClient) SetAccounts(accounts ...*Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = accounts
}

func (m *MockAccountApiClient) QueueSnapshots(snapshots ...*AccountSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshots...)
}

func (m *MockAccountApiClient) SetSnapshotError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotErr = err
}

func (m *MockAccountApiClient) SetSnapshotGate(gate chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotGate = gate
}

func (m *MockAccountApiClient) AddInstruments(instruments ...*Instrument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, instrument := range instruments {
		m.instruments[instrument.InstrumentID] = instrument
	}
}

func (m *MockAccountApiClient) SetCandles(candles ...*Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles = candles
}

func (m *MockAccountApiClient) SetSearchResults(results ...*InstrumentSearchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchResults = results
}

func (m *MockAccountApiClient) SnapshotCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotCalls
}

func (m *MockAccountApiClient) SnapshotRequests() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotRequests
}

func (m *MockAccountApiClient) InstrumentCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instrumentCalls
}

func (m *MockAccountApiClient) CandleCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.candleCalls
}

func NewMockAccountApiClient() *MockAccountApiClient {
	return &MockAccountApiClient{
		instruments: make(map[string]*Instrument),
	}
}
