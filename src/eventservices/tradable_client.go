package eventservices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

// storeTokenSource reads the current access token on every request, so a
// token refreshed through the store is picked up without rebuilding the client.
type storeTokenSource struct {
	store eventmodels.ITokenStore
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	state, err := s.store.Get()
	if err != nil {
		return nil, fmt.Errorf("storeTokenSource.Token: failed to read token: %w", err)
	}

	if state == nil || state.Token == "" {
		return nil, eventmodels.NewApiError(http.StatusUnauthorized, "missing_token", "no access token available", nil)
	}

	if state.IsExpired(time.Now()) {
		return nil, eventmodels.NewApiError(http.StatusUnauthorized, "token_expired", "access token expired", nil)
	}

	return state.ToOAuth2(), nil
}

type snapshotRequestDTO struct {
	InstrumentIDs []string `json:"instrumentIds"`
}

type instrumentsRequestDTO struct {
	InstrumentIDs []string `json:"instrumentIds,omitempty"`
}

type candlesRequestDTO struct {
	InstrumentID string `json:"instrumentId"`
	From         int64  `json:"from"`
	To           int64  `json:"to"`
	Aggregation  int    `json:"aggregation"`
}

type candlesResponseDTO struct {
	Candles []*eventmodels.Candle `json:"candles"`
}

type instrumentsResponseDTO struct {
	Instruments []*eventmodels.Instrument `json:"instruments"`
}

type accountsResponseDTO struct {
	Accounts []*eventmodels.Account `json:"accounts"`
}

// TradableClient talks to the account aggregation api over HTTP.
type TradableClient struct {
	baseURL string
	store   eventmodels.ITokenStore
	client  *http.Client
}

func (c *TradableClient) GetAccounts(ctx context.Context) ([]*eventmodels.Account, error) {
	var dto accountsResponseDTO
	if err := c.do(ctx, http.MethodGet, "v1/accounts", nil, nil, &dto); err != nil {
		return nil, fmt.Errorf("TradableClient.GetAccounts: %w", err)
	}

	return dto.Accounts, nil
}

func (c *TradableClient) GetSnapshot(ctx context.Context, accountID string, instrumentIDs []string) (*eventmodels.AccountSnapshot, error) {
	if instrumentIDs == nil {
		instrumentIDs = []string{}
	}

	var snapshot eventmodels.AccountSnapshot
	path := fmt.Sprintf("v1/accounts/%s/snapshot", url.PathEscape(accountID))
	if err := c.do(ctx, http.MethodPost, path, nil, snapshotRequestDTO{InstrumentIDs: instrumentIDs}, &snapshot); err != nil {
		return nil, fmt.Errorf("TradableClient.GetSnapshot: %w", err)
	}

	if snapshot.AccountID == "" {
		snapshot.AccountID = accountID
	}

	return &snapshot, nil
}

// GetInstruments returns the given instruments, or the account's full list
// when no ids are passed.
func (c *TradableClient) GetInstruments(ctx context.Context, accountID string, instrumentIDs []string) ([]*eventmodels.Instrument, error) {
	var dto instrumentsResponseDTO
	path := fmt.Sprintf("v1/accounts/%s/instruments", url.PathEscape(accountID))
	if err := c.do(ctx, http.MethodPost, path, nil, instrumentsRequestDTO{InstrumentIDs: instrumentIDs}, &dto); err != nil {
		return nil, fmt.Errorf("TradableClient.GetInstruments: %w", err)
	}

	return dto.Instruments, nil
}

func (c *TradableClient) GetCandles(ctx context.Context, accountID, instrumentID string, from, to time.Time, aggregationMinutes int) ([]*eventmodels.Candle, error) {
	req := candlesRequestDTO{
		InstrumentID: instrumentID,
		From:         from.UnixMilli(),
		To:           to.UnixMilli(),
		Aggregation:  aggregationMinutes,
	}

	var dto candlesResponseDTO
	path := fmt.Sprintf("v1/accounts/%s/candles", url.PathEscape(accountID))
	if err := c.do(ctx, http.MethodPost, path, nil, req, &dto); err != nil {
		return nil, fmt.Errorf("TradableClient.GetCandles: %w", err)
	}

	return dto.Candles, nil
}

func (c *TradableClient) SearchInstruments(ctx context.Context, accountID, query string) ([]*eventmodels.InstrumentSearchResult, error) {
	q := url.Values{}
	q.Set("query", query)

	var results []*eventmodels.InstrumentSearchResult
	path := fmt.Sprintf("v1/accounts/%s/instruments/search", url.PathEscape(accountID))
	if err := c.do(ctx, http.MethodGet, path, q, nil, &results); err != nil {
		return nil, fmt.Errorf("TradableClient.SearchInstruments: %w", err)
	}

	return results, nil
}

// endpoint prefers the endpoint handed out with the access token.
func (c *TradableClient) endpoint() string {
	if state, err := c.store.Get(); err == nil && state != nil && state.Endpoint != "" {
		return state.Endpoint
	}

	return c.baseURL
}

func (c *TradableClient) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	endpoint := strings.TrimSuffix(c.endpoint(), "/") + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Add("Accept", "application/json")
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}

	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return decodeApiError(res)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode json: %w", err)
	}

	return nil
}

func decodeApiError(res *http.Response) *eventmodels.ApiError {
	apiErr := &eventmodels.ApiError{}

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err == nil && len(data) > 0 {
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil {
			log.Debugf("decodeApiError: non json error body: %s", string(data))
			apiErr.Message = strings.TrimSpace(string(data))
		}
	}

	apiErr.StatusCode = res.StatusCode

	if apiErr.Code == "" {
		apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(res.StatusCode), " ", "_"))
	}

	if apiErr.Message == "" {
		apiErr.Message = res.Status
	}

	return apiErr
}

func NewTradableClient(baseURL string, store eventmodels.ITokenStore, timeout time.Duration) *TradableClient {
	transport := &oauth2.Transport{
		Source: &storeTokenSource{store: store},
		Base:   otelhttp.NewTransport(http.DefaultTransport),
	}

	return &TradableClient{
		baseURL: baseURL,
		store:   store,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}
