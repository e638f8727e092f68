// REST client for a Kite-style brokerage API. Read calls retry at the
// transport level; order placement never does.
package connectors

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"optionsrunner/src/model"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second

	apiTimeFormat    = "2006-01-02 15:04:05"
	candleTimeFormat = "2006-01-02T15:04:05-0700"
)

type apiResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// Client is one authenticated broker session. It implements BrokerAccount and,
// for the account holding a historical-data subscription, MarketData.
type Client struct {
	userID      string
	apiKey      string
	accessToken string
	baseURL     string
	http        *resty.Client
}

// Reads may be replayed safely; order placement must never be, because a
// timed-out POST may still have reached the exchange.
func isRetryableRead(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != resty.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return (code >= 500 && code <= 599) || code == 429 || code == 408
}

func NewClient(userID, apiKey, accessToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.kite.trade"
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableRead)

	return &Client{
		userID:      userID,
		apiKey:      apiKey,
		accessToken: accessToken,
		baseURL:     baseURL,
		http:        httpClient,
	}
}

func (c *Client) UserID() string { return c.userID }

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("X-Kite-Version", "3").
		SetHeader("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.accessToken))
}

func decodeResponse(resp *resty.Response) (*apiResponse, error) {
	var payload apiResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("malformed broker response (%d): %w", resp.StatusCode(), err)
	}
	if payload.Status != "success" {
		return &payload, fmt.Errorf("broker error %s: %s", payload.ErrorType, payload.Message)
	}
	return &payload, nil
}

// get wraps every failure as a TransientIOError so callers can retry.
func (c *Client) get(ctx context.Context, op, path string, query map[string]string) (*apiResponse, error) {
	resp, err := c.request(ctx).SetQueryParams(query).Get(path)
	if err != nil {
		return nil, &TransientIOError{Op: op, Err: err}
	}
	payload, err := decodeResponse(resp)
	if err != nil {
		return nil, &TransientIOError{Op: op, Err: err}
	}
	return payload, nil
}

// submit wraps every failure as an OrderRejectedError: a placement that did
// not confirm is treated as rejected for this account.
func (c *Client) submit(ctx context.Context, op, method, path, symbol string, form map[string]string) (*apiResponse, error) {
	req := c.request(ctx).SetFormData(form)

	var resp *resty.Response
	var err error
	switch method {
	case resty.MethodPut:
		resp, err = req.Put(path)
	case resty.MethodDelete:
		resp, err = req.Delete(path)
	default:
		resp, err = req.Post(path)
	}
	if err != nil {
		return nil, &OrderRejectedError{Op: op, Symbol: symbol, Message: err.Error()}
	}
	payload, err := decodeResponse(resp)
	if err != nil {
		return nil, &OrderRejectedError{Op: op, Symbol: symbol, Message: err.Error()}
	}
	return payload, nil
}

func (c *Client) PlaceOrder(ctx context.Context, symbol, side string, quantity int, clientRef string) (string, error) {
	form := map[string]string{
		"tradingsymbol":    symbol,
		"exchange":         ExchangeNFO,
		"transaction_type": side,
		"quantity":         strconv.Itoa(quantity),
		"order_type":       "MARKET",
		"product":          "NRML",
		"validity":         "DAY",
		"tag":              clientRef,
	}

	payload, err := c.submit(ctx, "PlaceOrder", resty.MethodPost, "/orders/regular", symbol, form)
	if err != nil {
		return "", err
	}

	var data struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return "", &OrderRejectedError{Op: "PlaceOrder", Symbol: symbol, Message: err.Error()}
	}

	logger.WithFields(map[string]interface{}{
		"user":     c.userID,
		"symbol":   symbol,
		"side":     side,
		"qty":      quantity,
		"order_id": data.OrderID,
	}).Info("order placed")

	return data.OrderID, nil
}

type orderRow struct {
	OrderID           string  `json:"order_id"`
	Symbol            string  `json:"tradingsymbol"`
	TransactionType   string  `json:"transaction_type"`
	Status            string  `json:"status"`
	StatusMessage     string  `json:"status_message"`
	AveragePrice      float64 `json:"average_price"`
	ExchangeUpdatedAt string  `json:"exchange_update_timestamp"`
}

func (c *Client) Orders(ctx context.Context) ([]OrderDetail, error) {
	payload, err := c.get(ctx, "Orders", "/orders", nil)
	if err != nil {
		return nil, err
	}

	var rows []orderRow
	if err := json.Unmarshal(payload.Data, &rows); err != nil {
		return nil, &TransientIOError{Op: "Orders", Err: err}
	}

	orders := make([]OrderDetail, 0, len(rows))
	for _, row := range rows {
		updated, _ := time.Parse(apiTimeFormat, row.ExchangeUpdatedAt)
		orders = append(orders, OrderDetail{
			OrderID:       row.OrderID,
			Symbol:        row.Symbol,
			Side:          row.TransactionType,
			Status:        row.Status,
			StatusMessage: row.StatusMessage,
			FillPrice:     decimal.NewFromFloat(row.AveragePrice),
			UpdatedAt:     updated,
		})
	}
	return orders, nil
}

func bracketForm(symbol string, quantity int, stop, target, lastPrice decimal.Decimal) (map[string]string, error) {
	condition := map[string]interface{}{
		"exchange":       ExchangeNFO,
		"tradingsymbol":  symbol,
		"trigger_values": []string{stop.String(), target.String()},
		"last_price":     lastPrice.InexactFloat64(),
	}

	leg := func(price decimal.Decimal) map[string]interface{} {
		return map[string]interface{}{
			"exchange":         ExchangeNFO,
			"tradingsymbol":    symbol,
			"transaction_type": SideSell,
			"quantity":         quantity,
			"order_type":       "LIMIT",
			"product":          "NRML",
			"price":            price.InexactFloat64(),
		}
	}

	conditionJSON, err := json.Marshal(condition)
	if err != nil {
		return nil, err
	}
	ordersJSON, err := json.Marshal([]map[string]interface{}{leg(stop), leg(target)})
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"type":      "two-leg",
		"condition": string(conditionJSON),
		"orders":    string(ordersJSON),
	}, nil
}

func (c *Client) PlaceBracket(ctx context.Context, symbol string, quantity int, stop, target, lastPrice decimal.Decimal) (string, error) {
	form, err := bracketForm(symbol, quantity, stop, target, lastPrice)
	if err != nil {
		return "", &OrderRejectedError{Op: "PlaceBracket", Symbol: symbol, Message: err.Error()}
	}

	payload, err := c.submit(ctx, "PlaceBracket", resty.MethodPost, "/gtt/triggers", symbol, form)
	if err != nil {
		return "", err
	}
	return decodeTriggerID(payload, "PlaceBracket", symbol)
}

func (c *Client) ModifyBracket(ctx context.Context, triggerID, symbol string, quantity int, stop, target, lastPrice decimal.Decimal) (string, error) {
	form, err := bracketForm(symbol, quantity, stop, target, lastPrice)
	if err != nil {
		return "", &OrderRejectedError{Op: "ModifyBracket", Symbol: symbol, Message: err.Error()}
	}

	payload, err := c.submit(ctx, "ModifyBracket", resty.MethodPut, "/gtt/triggers/"+triggerID, symbol, form)
	if err != nil {
		return "", err
	}
	return decodeTriggerID(payload, "ModifyBracket", symbol)
}

func decodeTriggerID(payload *apiResponse, op, symbol string) (string, error) {
	var data struct {
		TriggerID int64 `json:"trigger_id"`
	}
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return "", &OrderRejectedError{Op: op, Symbol: symbol, Message: err.Error()}
	}
	return strconv.FormatInt(data.TriggerID, 10), nil
}

func (c *Client) BracketStatus(ctx context.Context, triggerID string) (string, time.Time, error) {
	payload, err := c.get(ctx, "BracketStatus", "/gtt/triggers/"+triggerID, nil)
	if err != nil {
		return "", time.Time{}, err
	}

	var data struct {
		Status    string `json:"status"`
		UpdatedAt string `json:"updated_at"`
	}
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return "", time.Time{}, &TransientIOError{Op: "BracketStatus", Err: err}
	}

	updated, _ := time.Parse(apiTimeFormat, data.UpdatedAt)
	return data.Status, updated, nil
}

func (c *Client) LastPrice(ctx context.Context, exchange, symbol string) (decimal.Decimal, error) {
	key := exchange + ":" + symbol
	payload, err := c.get(ctx, "LastPrice", "/quote/ltp", map[string]string{"i": key})
	if err != nil {
		return decimal.Zero, err
	}

	var data map[string]struct {
		LastPrice float64 `json:"last_price"`
	}
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return decimal.Zero, &TransientIOError{Op: "LastPrice", Err: err}
	}

	quote, ok := data[key]
	if !ok {
		return decimal.Zero, &TransientIOError{Op: "LastPrice", Err: fmt.Errorf("no quote for %s", key)}
	}
	return decimal.NewFromFloat(quote.LastPrice), nil
}

func (c *Client) HistoricalBars(ctx context.Context, token int64, from, to time.Time, interval string) ([]model.Bar, error) {
	path := fmt.Sprintf("/instruments/historical/%d/%s", token, interval)
	payload, err := c.get(ctx, "HistoricalBars", path, map[string]string{
		"from": from.Format(apiTimeFormat),
		"to":   to.Format(apiTimeFormat),
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		Candles [][]json.RawMessage `json:"candles"`
	}
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return nil, &TransientIOError{Op: "HistoricalBars", Err: err}
	}

	bars := make([]model.Bar, 0, len(data.Candles))
	for _, candle := range data.Candles {
		if len(candle) < 5 {
			continue
		}
		bar, err := parseCandle(candle)
		if err != nil {
			return nil, &TransientIOError{Op: "HistoricalBars", Err: err}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseCandle(candle []json.RawMessage) (model.Bar, error) {
	var dateStr string
	if err := json.Unmarshal(candle[0], &dateStr); err != nil {
		return model.Bar{}, err
	}
	date, err := time.Parse(candleTimeFormat, dateStr)
	if err != nil {
		date, err = time.Parse(time.RFC3339, dateStr)
		if err != nil {
			return model.Bar{}, err
		}
	}

	prices := make([]decimal.Decimal, 4)
	for i := 0; i < 4; i++ {
		var v float64
		if err := json.Unmarshal(candle[i+1], &v); err != nil {
			return model.Bar{}, err
		}
		prices[i] = decimal.NewFromFloat(v)
	}

	return model.Bar{
		Date:  date,
		Open:  prices[0],
		High:  prices[1],
		Low:   prices[2],
		Close: prices[3],
	}, nil
}

// Instruments downloads and parses the exchange's full contract dump. Used by
// the premarket sync job, not by the trading loop.
func (c *Client) Instruments(ctx context.Context, exchange string) ([]model.Contract, error) {
	resp, err := c.request(ctx).Get("/instruments/" + exchange)
	if err != nil {
		return nil, &TransientIOError{Op: "Instruments", Err: err}
	}
	if resp.StatusCode() != 200 {
		return nil, &TransientIOError{Op: "Instruments", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	return ParseInstrumentsCSV(strings.NewReader(resp.String()))
}

// ParseInstrumentsCSV reads the broker CSV dump; columns follow the Kite
// layout: instrument_token, exchange_token, tradingsymbol, name, last_price,
// expiry, strike, tick_size, lot_size, instrument_type, segment, exchange.
func ParseInstrumentsCSV(r io.Reader) ([]model.Contract, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var contracts []model.Contract
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed instrument dump: %w", err)
		}
		if first {
			first = false // header row
			continue
		}
		if len(record) < 12 {
			continue
		}

		token, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			continue
		}
		expiry, _ := time.Parse("2006-01-02", record[5])
		strike, err := decimal.NewFromString(record[6])
		if err != nil {
			strike = decimal.Zero
		}
		lotSize, _ := strconv.Atoi(record[8])

		contracts = append(contracts, model.Contract{
			Token:          token,
			Symbol:         record[2],
			Name:           record[3],
			Expiry:         expiry,
			Strike:         strike,
			InstrumentType: record[9],
			Exchange:       record[11],
			LotSize:        lotSize,
		})
	}
	return contracts, nil
}
