package run

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

// ExportCandlesToCsv writes candles to <outDir>/<prefix>_<timestamp>.csv and
// returns the file path.
func ExportCandlesToCsv(outDir string, candles []*eventmodels.Candle, outFilePrefix string, now time.Time) (string, error) {
	outFilePath := path.Join(outDir, fmt.Sprintf("%s_%s.csv", outFilePrefix, now.Format("2006-01-02_15-04-05")))

	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
			return "", fmt.Errorf("ExportCandlesToCsv: failed to create directory: %w", err)
		}
	}

	file, err := os.Create(outFilePath)
	if err != nil {
		return "", fmt.Errorf("ExportCandlesToCsv: failed to create file: %w", err)
	}
	defer file.Close()

	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		return gocsv.NewSafeCSVWriter(csv.NewWriter(out))
	})

	if err := gocsv.MarshalFile(&candles, file); err != nil {
		return "", fmt.Errorf("ExportCandlesToCsv: failed to write to file: %w", err)
	}

	return outFilePath, nil
}

// CandleSeries collects streamed candles, replacing the entry of a bucket
// that was updated in place.
type CandleSeries struct {
	candles []*eventmodels.Candle
}

func (s *CandleSeries) Merge(candles []*eventmodels.Candle) {
	for _, c := range candles {
		n := len(s.candles)
		if n > 0 && s.candles[n-1].Timestamp == c.Timestamp {
			s.candles[n-1] = c
			continue
		}

		s.candles = append(s.candles, c)
	}
}

func (s *CandleSeries) Candles() []*eventmodels.Candle {
	return s.candles
}
