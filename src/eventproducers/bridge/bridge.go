package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

const (
	writeWait                 = 5 * time.Second
	defaultCandleCount        = 100
	defaultAggregationMinutes = 1
)

type instrumentsQuery struct {
	Query string `schema:"query,required"`
}

type candlesQuery struct {
	InstrumentID string `schema:"instrumentId,required"`
	From         int64  `schema:"from"`
	To           int64  `schema:"to"`
	Aggregation  int    `schema:"aggregation"`
}

// Bridge exposes a Tradable to web pages: events stream over a websocket and
// the latest state is served as JSON.
type Bridge struct {
	tradable ITradable
	fanout   EventBus.Bus
	upgrader websocket.Upgrader
	decoder  *schema.Decoder

	mutex       sync.Mutex
	connections map[string]*websocket.Conn
}

func (b *Bridge) SetupHandler(router *mux.Router) {
	handle := func(path string, f http.HandlerFunc) {
		router.Handle(path, otelhttp.WithRouteTag(path, f)).Methods(http.MethodGet)
	}

	handle("/events", b.handleEvents)
	handle("/snapshot", b.handleSnapshot)
	handle("/instruments", b.handleInstruments)
	handle("/candles", b.handleCandles)
}

func (b *Bridge) Connections() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return len(b.connections)
}

func (b *Bridge) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Bridge.handleEvents: failed to upgrade: %v", err)
		return
	}

	namespace := "bridge_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	logger := log.WithField("namespace", namespace)

	write := func(frame *EventFrame) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(frame); err != nil {
			logger.Warnf("Bridge: failed to write %s: %v", frame.Event, err)
		}
	}

	// transactional keeps a single writer per connection and preserves order
	if err := b.fanout.SubscribeAsync(namespace, write, true); err != nil {
		logger.Errorf("Bridge.handleEvents: %v", err)
		conn.Close()
		return
	}

	for _, name := range eventmodels.EventNames {
		name := name
		if err := b.tradable.On(namespace, name, func(data interface{}) {
			b.fanout.Publish(namespace, newEventFrame(name, data))
		}); err != nil {
			logger.Errorf("Bridge.handleEvents: %v", err)
		}
	}

	b.mutex.Lock()
	b.connections[namespace] = conn
	b.mutex.Unlock()

	logger.Info("Bridge: page connected")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("Bridge: read failed: %v", err)
			}
			break
		}
	}

	if err := b.tradable.Off(namespace); err != nil {
		logger.Errorf("Bridge.handleEvents: %v", err)
	}

	if err := b.fanout.Unsubscribe(namespace, write); err != nil {
		logger.Debugf("Bridge.handleEvents: %v", err)
	}

	b.mutex.Lock()
	delete(b.connections, namespace)
	b.mutex.Unlock()

	conn.Close()
	logger.Info("Bridge: page disconnected")
}

func (b *Bridge) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := b.tradable.LastSnapshot()
	if snapshot == nil {
		setErrorResponse(w, eventmodels.NewApiError(http.StatusNotFound, "no_snapshot", "no snapshot received yet", nil))
		return
	}

	setResponse(w, snapshot)
}

func (b *Bridge) handleInstruments(w http.ResponseWriter, r *http.Request) {
	var query instrumentsQuery
	if err := b.decodeQuery(r, &query); err != nil {
		setErrorResponse(w, err)
		return
	}

	results, err := b.tradable.SearchInstruments(r.Context(), query.Query)
	if err != nil {
		setErrorResponse(w, err)
		return
	}

	if results == nil {
		results = []*eventmodels.InstrumentSearchResult{}
	}

	setResponse(w, results)
}

func (b *Bridge) handleCandles(w http.ResponseWriter, r *http.Request) {
	var query candlesQuery
	if err := b.decodeQuery(r, &query); err != nil {
		setErrorResponse(w, err)
		return
	}

	if query.Aggregation == 0 {
		query.Aggregation = defaultAggregationMinutes
	}

	to := time.Now()
	if query.To > 0 {
		to = time.UnixMilli(query.To)
	}

	from := to.Add(-time.Duration(defaultCandleCount*query.Aggregation) * time.Minute)
	if query.From > 0 {
		from = time.UnixMilli(query.From)
	}

	candles, err := b.tradable.GetCandles(r.Context(), query.InstrumentID, from, to, query.Aggregation)
	if err != nil {
		setErrorResponse(w, err)
		return
	}

	if candles == nil {
		candles = []*eventmodels.Candle{}
	}

	setResponse(w, candles)
}

func (b *Bridge) decodeQuery(r *http.Request, dst interface{}) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("Bridge.decodeQuery: %v: %w", err, eventmodels.ErrInvalidArgument)
	}

	if err := b.decoder.Decode(dst, r.Form); err != nil {
		return fmt.Errorf("Bridge.decodeQuery: %v: %w", err, eventmodels.ErrInvalidArgument)
	}

	return nil
}

// ListenAndServe serves the bridge on addr until ctx is cancelled.
func (b *Bridge) ListenAndServe(ctx context.Context, addr string) error {
	router := mux.NewRouter()
	b.SetupHandler(router)

	srv := &http.Server{
		Handler: router,
		Addr:    addr,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Bridge: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("Bridge.ListenAndServe: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b.closeConnections()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("Bridge.ListenAndServe: shutdown failed: %w", err)
	}

	return nil
}

func (b *Bridge) closeConnections() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, conn := range b.connections {
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), time.Now().Add(writeWait))
		conn.Close()
	}
}

func setResponse(w http.ResponseWriter, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("setResponse: encode: %v", err)
	}
}

func setErrorResponse(w http.ResponseWriter, err error) {
	var apiErr *eventmodels.ApiError
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, eventmodels.ErrInvalidArgument):
		apiErr = eventmodels.NewApiError(http.StatusBadRequest, "invalid_argument", err.Error(), nil)
	case errors.Is(err, eventmodels.ErrNoAccountSelected):
		apiErr = eventmodels.NewApiError(http.StatusConflict, "no_account_selected", err.Error(), nil)
	default:
		apiErr = eventmodels.NewApiError(http.StatusInternalServerError, "internal", err.Error(), nil)
	}

	status := apiErr.StatusCode
	if status < 400 {
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if encodeErr := json.NewEncoder(w).Encode(apiErr); encodeErr != nil {
		log.Errorf("setErrorResponse: encode: %v", encodeErr)
	}
}

func NewBridge(tradable ITradable) *Bridge {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &Bridge{
		tradable: tradable,
		fanout:   EventBus.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		decoder:     decoder,
		connections: make(map[string]*websocket.Conn),
	}
}
