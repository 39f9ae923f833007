package run

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

func Test_RenderSnapshot(t *testing.T) {
	// arrange
	bid := 1.23456
	snapshot := &eventmodels.AccountSnapshot{
		AccountID: "acc-1",
		Metrics:   eventmodels.AccountMetrics{Balance: 12345.5, Currency: "USD"},
		Positions: eventmodels.SnapshotPositions{
			Open: []*eventmodels.Position{{ID: "p1", InstrumentID: "I1", Side: eventmodels.OrderSideBuy, Amount: 1000}},
		},
		Orders: eventmodels.SnapshotOrders{
			Pending: []*eventmodels.Order{{ID: "o1", InstrumentID: "I2", Type: eventmodels.OrderTypeLimit}},
		},
		Prices: []*eventmodels.Price{{InstrumentID: "I1", Bid: &bid}},
	}
	lookup := func(id string) string { return map[string]string{"I1": "EURUSD", "I2": "GBPUSD"}[id] }

	// act
	var buf bytes.Buffer
	RenderSnapshot(&buf, snapshot, lookup)

	// assert
	out := buf.String()
	assert.Contains(t, out, "Account acc-1")
	assert.Contains(t, out, "12,345.50 USD")
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "1.23456")
	assert.Contains(t, out, "GBPUSD")
}

func Test_RenderExecution(t *testing.T) {
	var buf bytes.Buffer
	RenderExecution(&buf, &eventmodels.ExecutionResult{Orders: []string{"o2"}, Positions: []string{"p1BUY50"}})

	assert.Contains(t, buf.String(), "2 new executions")
	assert.Contains(t, buf.String(), "p1BUY50")
}

func Test_ExportCandlesToCsv(t *testing.T) {
	// arrange
	dir := filepath.Join(t.TempDir(), "out")
	candles := []*eventmodels.Candle{
		{Timestamp: 1700000000000, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15},
		{Timestamp: 1700000060000, Open: 1.15, High: 1.16, Low: 1.14, Close: 1.16},
	}

	// act
	path, err := ExportCandlesToCsv(dir, candles, "EURUSD", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	// assert
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "EURUSD_2024-03-01_12-00-00.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,open,high,low,close", lines[0])
	assert.Equal(t, "1700000000000,1.1,1.2,1,1.15", lines[1])
}

func Test_CandleSeries_Merge(t *testing.T) {
	series := &CandleSeries{}

	series.Merge([]*eventmodels.Candle{{Timestamp: 1, Close: 1}, {Timestamp: 2, Close: 2}})
	series.Merge([]*eventmodels.Candle{{Timestamp: 2, Close: 2.5}})
	series.Merge([]*eventmodels.Candle{{Timestamp: 3, Close: 3}})

	require.Len(t, series.Candles(), 3)
	assert.Equal(t, 2.5, series.Candles()[1].Close)
}

func Test_LatencyTracker_Summary(t *testing.T) {
	t.Run("no samples", func(t *testing.T) {
		tracker := &LatencyTracker{}
		tracker.Observe(time.Now())

		_, err := tracker.Summary()

		assert.Error(t, err)
	})

	t.Run("gaps between updates", func(t *testing.T) {
		// arrange
		tracker := &LatencyTracker{}
		start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		// act
		for _, offset := range []int{0, 700, 1400, 2100, 3500} {
			tracker.Observe(start.Add(time.Duration(offset) * time.Millisecond))
		}
		summary, err := tracker.Summary()

		// assert
		require.NoError(t, err)
		assert.Equal(t, 4, summary.Count)
		assert.Equal(t, 875.0, summary.Mean)
		assert.Equal(t, 700.0, summary.Median)
		assert.Equal(t, 1400.0, summary.Max)
		assert.GreaterOrEqual(t, summary.P95, summary.Median)
		assert.LessOrEqual(t, summary.P95, summary.Max)
	})
}
