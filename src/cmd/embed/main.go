package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/tradable-embed/src/cmd/embed/run"
	"github.com/jiaming2012/tradable-embed/src/eventmodels"
	"github.com/jiaming2012/tradable-embed/src/eventproducers/bridge"
	"github.com/jiaming2012/tradable-embed/src/eventservices"
	"github.com/jiaming2012/tradable-embed/src/logger"
	"github.com/jiaming2012/tradable-embed/src/models"
	"github.com/jiaming2012/tradable-embed/src/sdk"
	"github.com/jiaming2012/tradable-embed/src/utils"
)

const serviceName = "tradable-embed"

type session struct {
	tradable *sdk.Tradable
	config   *eventmodels.EmbedConfig
	shutdown func(context.Context) error
}

func (s *session) Close() {
	s.tradable.Close()

	if s.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.shutdown(ctx); err != nil {
			log.Errorf("failed to shut down telemetry: %v", err)
		}
	}
}

func newSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("error getting config: %w", err)
	}

	envDir, err := cmd.Flags().GetString("env-dir")
	if err != nil {
		return nil, fmt.Errorf("error getting env-dir: %w", err)
	}

	withTelemetry, err := cmd.Flags().GetBool("otel")
	if err != nil {
		return nil, fmt.Errorf("error getting otel: %w", err)
	}

	if err := utils.InitEnvironmentVariables(envDir); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	config, err := utils.LoadEmbedConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(os.Stdout, config.LogLevel, config.LogFormat); err != nil {
		return nil, err
	}

	s := &session{config: config}

	if withTelemetry {
		s.shutdown, err = utils.SetupOTelSDK(ctx, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to setup otel sdk: %w", err)
		}
	}

	var store eventmodels.ITokenStore = eventservices.NewMemoryTokenStore(nil)
	if config.TokenFile != "" {
		store = eventservices.NewFileTokenStore(config.TokenFile)
	}

	token, err := utils.TokenFromEnv(config, time.Now())
	if err != nil {
		return nil, err
	}

	if token != nil {
		if err := store.Set(token); err != nil {
			return nil, fmt.Errorf("failed to store token: %w", err)
		}
	}

	client := eventservices.NewTradableClient(config.ApiURL, store, config.RequestTimeout())

	s.tradable, err = sdk.New(config, client, store)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func symbolLookup(tradable *sdk.Tradable) run.SymbolLookup {
	return func(instrumentID string) string {
		if instrument := tradable.GetInstrumentBy(models.InstrumentFieldID, instrumentID); instrument != nil {
			return instrument.Symbol
		}

		return instrumentID
	}
}

func logErrors(tradable *sdk.Tradable) error {
	return tradable.On("cli", eventmodels.ErrorEvent, func(data interface{}) {
		log.Errorf("error event: %v", data)
	})
}

var rootCmd = &cobra.Command{
	Use:   "embed",
	Short: "Follow a trading account through the account aggregation api",
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print account snapshots and new executions as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := newSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := logErrors(s.tradable); err != nil {
			return err
		}

		var mutex sync.Mutex
		latency := &run.LatencyTracker{}
		lookup := symbolLookup(s.tradable)

		if err := s.tradable.On("cli", eventmodels.AccountUpdatedEvent, func(data interface{}) {
			latency.Observe(time.Now())

			mutex.Lock()
			defer mutex.Unlock()
			run.RenderSnapshot(os.Stdout, data.(*eventmodels.AccountSnapshot), lookup)
		}); err != nil {
			return err
		}

		if err := s.tradable.On("cli", eventmodels.ExecutionEvent, func(data interface{}) {
			mutex.Lock()
			defer mutex.Unlock()
			run.RenderExecution(os.Stdout, data.(*eventmodels.ExecutionResult))
		}); err != nil {
			return err
		}

		if err := s.tradable.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		if summary, err := latency.Summary(); err == nil {
			log.Infof("watch: %v", summary)
		}

		return nil
	},
}

var candlesCmd = &cobra.Command{
	Use:   "candles",
	Short: "Stream candles of one instrument, optionally exporting them to CSV on exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		instrumentID, err := cmd.Flags().GetString("instrument")
		if err != nil {
			return fmt.Errorf("error getting instrument: %w", err)
		}

		aggregation, err := cmd.Flags().GetInt("aggregation")
		if err != nil {
			return fmt.Errorf("error getting aggregation: %w", err)
		}

		lookback, err := cmd.Flags().GetDuration("lookback")
		if err != nil {
			return fmt.Errorf("error getting lookback: %w", err)
		}

		outDir, err := cmd.Flags().GetString("outDir")
		if err != nil {
			return fmt.Errorf("error getting outDir: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := newSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := logErrors(s.tradable); err != nil {
			return err
		}

		if err := s.tradable.Start(ctx); err != nil {
			return err
		}

		var mutex sync.Mutex
		series := &run.CandleSeries{}

		err = s.tradable.StartCandleUpdates(ctx, instrumentID, time.Now().Add(-lookback), aggregation, func(candles []*eventmodels.Candle) {
			mutex.Lock()
			defer mutex.Unlock()

			series.Merge(candles)
			for _, c := range candles {
				fmt.Printf("%s  o=%.5f h=%.5f l=%.5f c=%.5f\n", time.UnixMilli(c.Timestamp).Format(time.RFC3339), c.Open, c.High, c.Low, c.Close)
			}
		})
		if err != nil {
			return err
		}

		<-ctx.Done()
		s.tradable.StopCandleUpdates()

		if outDir == "" {
			return nil
		}

		mutex.Lock()
		defer mutex.Unlock()

		csvPath, err := run.ExportCandlesToCsv(outDir, series.Candles(), instrumentID, time.Now())
		if err != nil {
			return err
		}

		fmt.Println("CSV file written to: ", csvPath)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve account events to web pages over a websocket bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := newSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.tradable.Start(ctx); err != nil {
			log.Warnf("serve: %v", err)
		}

		return bridge.NewBridge(s.tradable).ListenAndServe(ctx, s.config.BridgeAddr)
	},
}

func main() {
	rootCmd.PersistentFlags().String("config", "embed.yaml", "path to the yaml config")
	rootCmd.PersistentFlags().String("env-dir", ".", "directory holding .env.development / .env.production")
	rootCmd.PersistentFlags().Bool("otel", false, "export traces and metrics over OTLP")

	candlesCmd.Flags().String("instrument", "", "instrument id to follow")
	candlesCmd.Flags().Int("aggregation", 1, "candle width in minutes")
	candlesCmd.Flags().Duration("lookback", time.Hour, "history to load before streaming")
	candlesCmd.Flags().String("outDir", "", "directory to export the candles to on exit")
	candlesCmd.MarkFlagRequired("instrument")

	rootCmd.AddCommand(watchCmd, candlesCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
