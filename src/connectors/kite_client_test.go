package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestPlaceOrderSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotForm url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"order_id":"240305000123"}}`))
	}))
	defer srv.Close()

	client := NewClient("AB1234", "key", "token", srv.URL)
	orderID, err := client.PlaceOrder(context.Background(), "NIFTY25MAR22350CE", SideBuy, 50, "ref-1")
	require.NoError(t, err)
	require.Equal(t, "240305000123", orderID)

	require.Equal(t, "/orders/regular", gotPath)
	require.Equal(t, "token key:token", gotAuth)
	require.Equal(t, "NIFTY25MAR22350CE", gotForm.Get("tradingsymbol"))
	require.Equal(t, "BUY", gotForm.Get("transaction_type"))
	require.Equal(t, "50", gotForm.Get("quantity"))
	require.Equal(t, "ref-1", gotForm.Get("tag"))
}

func TestPlaceOrderRejectionIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","error_type":"InputException","message":"margin shortfall"}`))
	}))
	defer srv.Close()

	client := NewClient("AB1234", "key", "token", srv.URL)
	_, err := client.PlaceOrder(context.Background(), "NIFTY25MAR22350CE", SideBuy, 50, "ref-1")
	require.Error(t, err)
	require.True(t, IsRejected(err))
	require.False(t, IsTransient(err))
	require.Contains(t, err.Error(), "margin shortfall")
}

func TestOrdersQueryFailureIsTransient(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("AB1234", "key", "token", srv.URL)
	_, err := client.Orders(context.Background())
	require.Error(t, err)
	require.True(t, IsTransient(err))
	require.False(t, IsRejected(err))
	// GETs are replay-safe and go through the retry policy.
	require.Greater(t, calls, 1)
}

func TestOrdersParsesBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":[
			{"order_id":"1","tradingsymbol":"NIFTY25MAR22350CE","transaction_type":"BUY","status":"COMPLETE","average_price":104.5,"exchange_update_timestamp":"2025-03-05 10:02:11"},
			{"order_id":"2","tradingsymbol":"NIFTY25MAR22350CE","transaction_type":"SELL","status":"REJECTED","status_message":"insufficient funds","exchange_update_timestamp":"2025-03-05 10:05:00"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient("AB1234", "key", "token", srv.URL)
	book, err := client.Orders(context.Background())
	require.NoError(t, err)
	require.Len(t, book, 2)

	require.Equal(t, "1", book[0].OrderID)
	require.Equal(t, "COMPLETE", book[0].Status)
	require.True(t, book[0].FillPrice.Equal(d("104.5")))
	require.Equal(t, 2025, book[0].UpdatedAt.Year())

	require.Equal(t, "REJECTED", book[1].Status)
	require.Equal(t, "insufficient funds", book[1].StatusMessage)
}

func TestLastPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "NSE:NIFTY 50", r.URL.Query().Get("i"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"NSE:NIFTY 50":{"last_price":22436.25}}}`))
	}))
	defer srv.Close()

	client := NewClient("AB1234", "key", "token", srv.URL)
	price, err := client.LastPrice(context.Background(), ExchangeNSE, "NIFTY 50")
	require.NoError(t, err)
	require.True(t, price.Equal(d("22436.25")))
}

func TestHistoricalBarsParsesCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[
			["2025-03-05T09:15:00+0530",100,110,99,105,12345],
			["2025-03-05T10:15:00+0530",105,112,104,111,23456]
		]}}`))
	}))
	defer srv.Close()

	client := NewClient("AB1234", "key", "token", srv.URL)
	bars, err := client.HistoricalBars(context.Background(), 256265, mustTime(t, "2025-03-01T09:15:00+05:30"), mustTime(t, "2025-03-05T11:00:00+05:30"), Interval60Min)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.True(t, bars[0].Open.Equal(d("100")))
	require.True(t, bars[1].Close.Equal(d("111")))
	require.Equal(t, 9, bars[0].Date.Hour())
}

func TestParseInstrumentsCSV(t *testing.T) {
	dump := strings.Join([]string{
		"instrument_token,exchange_token,tradingsymbol,name,last_price,expiry,strike,tick_size,lot_size,instrument_type,segment,exchange",
		"12345,48,NIFTY25MAR22350CE,NIFTY,0,2025-03-06,22350,0.05,50,CE,NFO-OPT,NFO",
		"67890,265,NIFTY25MARFUT,NIFTY,0,2025-03-27,0,0.05,50,FUT,NFO-FUT,NFO",
		"not-a-token,0,BAD,BAD,0,,,,,,,",
	}, "\n")

	contracts, err := ParseInstrumentsCSV(strings.NewReader(dump))
	require.NoError(t, err)
	require.Len(t, contracts, 2)

	require.Equal(t, int64(12345), contracts[0].Token)
	require.Equal(t, "NIFTY25MAR22350CE", contracts[0].Symbol)
	require.Equal(t, "CE", contracts[0].InstrumentType)
	require.Equal(t, 50, contracts[0].LotSize)
	require.True(t, contracts[0].Strike.Equal(d("22350")))
	require.Equal(t, "NFO", contracts[0].Exchange)

	require.Equal(t, "FUT", contracts[1].InstrumentType)
}

func TestExchangeTokenChecksum(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "/session/token", r.URL.Path)
		require.Equal(t, "key", r.PostForm.Get("api_key"))
		require.Equal(t, "reqtok", r.PostForm.Get("request_token"))
		// sha256("key" + "reqtok" + "secret")
		require.Len(t, r.PostForm.Get("checksum"), 64)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"access_token":"at-123"}}`))
	}))
	defer srv.Close()

	token, err := ExchangeToken(context.Background(), srv.URL, "key", "secret", "reqtok")
	require.NoError(t, err)
	require.Equal(t, "at-123", token)
}
