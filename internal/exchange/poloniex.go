package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

const (
	publicPath  = "/public"
	tradingPath = "/tradingApi"

	// Trade history dates come without a zone and are UTC.
	historyDateLayout = "2006-01-02 15:04:05"
	historyLimit      = 10000

	amountPrecision = 8
)

// Poloniex is an HTTP client for the Poloniex public and trading APIs.
type Poloniex struct {
	baseURL    string
	apiKey     string
	secret     []byte
	httpClient *http.Client
	logger     *zap.Logger
	nonce      atomic.Int64
	now        func() time.Time
}

// PoloniexConfig holds configuration for the Poloniex client.
type PoloniexConfig struct {
	BaseURL string
	APIKey  string
	Secret  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewPoloniex creates a new Poloniex client.
func NewPoloniex(cfg *PoloniexConfig) *Poloniex {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Poloniex{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		secret:     []byte(cfg.Secret),
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

type tickerEntry struct {
	HighestBid decimal.Decimal `json:"highestBid"`
	LowestAsk  decimal.Decimal `json:"lowestAsk"`
}

// Ticker implements Client.
func (p *Poloniex) Ticker(ctx context.Context, pair string) (types.Ticker, error) {
	const command = "returnTicker"

	var tickers map[string]tickerEntry
	if err := p.public(ctx, command, url.Values{}, &tickers); err != nil {
		return types.Ticker{}, err
	}

	entry, ok := tickers[pair]
	if !ok {
		return types.Ticker{}, &types.ExchangeError{Command: command, Message: fmt.Sprintf("unknown pair %s", pair)}
	}

	return types.Ticker{
		HighestBid: entry.HighestBid.InexactFloat64(),
		LowestAsk:  entry.LowestAsk.InexactFloat64(),
	}, nil
}

type candle struct {
	Date            int64           `json:"date"`
	WeightedAverage decimal.Decimal `json:"weightedAverage"`
}

// ChartPrices implements Client.
func (p *Poloniex) ChartPrices(ctx context.Context, pair string, period time.Duration, since time.Time) ([]float64, error) {
	params := url.Values{}
	params.Set("currencyPair", pair)
	params.Set("period", strconv.FormatInt(int64(period/time.Second), 10))
	params.Set("start", strconv.FormatInt(since.Unix(), 10))
	params.Set("end", strconv.FormatInt(p.now().Unix(), 10))

	var candles []candle
	if err := p.public(ctx, "returnChartData", params, &candles); err != nil {
		return nil, err
	}

	prices := make([]float64, 0, len(candles))
	for _, c := range candles {
		// An empty range comes back as a single all-zero candle.
		if c.Date == 0 {
			continue
		}
		prices = append(prices, c.WeightedAverage.InexactFloat64())
	}

	return prices, nil
}

// Balances implements Client.
func (p *Poloniex) Balances(ctx context.Context) (map[string]float64, error) {
	var raw map[string]decimal.Decimal
	if err := p.private(ctx, "returnBalances", url.Values{}, &raw); err != nil {
		return nil, err
	}

	balances := make(map[string]float64, len(raw))
	for currency, amount := range raw {
		balances[currency] = amount.InexactFloat64()
	}

	return balances, nil
}

type historyEntry struct {
	OrderNumber flexString      `json:"orderNumber"`
	Date        string          `json:"date"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	Total       decimal.Decimal `json:"total"`
	Fee         decimal.Decimal `json:"fee"`
	Type        string          `json:"type"`
}

func (h historyEntry) record(command string) (types.TradeRecord, error) {
	date, err := time.ParseInLocation(historyDateLayout, h.Date, time.UTC)
	if err != nil {
		return types.TradeRecord{}, &types.TransportError{Command: command, Err: fmt.Errorf("parse date %q: %w", h.Date, err)}
	}

	return types.TradeRecord{
		OrderNumber: string(h.OrderNumber),
		Date:        date,
		Rate:        h.Rate.String(),
		Amount:      h.Amount.String(),
		Total:       h.Total.String(),
		Fee:         h.Fee.String(),
		Type:        types.Side(h.Type),
	}, nil
}

// OrderHistory implements Client. The exchange reports newest first; records are re-sorted
// oldest first because the position aggregator weights later fills more heavily.
func (p *Poloniex) OrderHistory(ctx context.Context, pair string, since time.Time) ([]types.TradeRecord, error) {
	const command = "returnTradeHistory"

	params := url.Values{}
	params.Set("currencyPair", pair)
	params.Set("start", strconv.FormatInt(since.Unix(), 10))
	params.Set("end", strconv.FormatInt(p.now().Unix(), 10))
	params.Set("limit", strconv.Itoa(historyLimit))

	var entries []historyEntry
	if err := p.private(ctx, command, params, &entries); err != nil {
		return nil, err
	}

	// Reversed first so that fills sharing a timestamp keep their execution order.
	records := make([]types.TradeRecord, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		rec, err := entries[i].record(command)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	return records, nil
}

type orderResponse struct {
	OrderNumber     flexString     `json:"orderNumber"`
	ResultingTrades []historyEntry `json:"resultingTrades"`
}

// PlaceBuy implements Client.
func (p *Poloniex) PlaceBuy(ctx context.Context, pair string, rate, amount float64) (OrderResult, error) {
	return p.placeOrder(ctx, types.SideBuy, pair, rate, amount)
}

// PlaceSell implements Client.
func (p *Poloniex) PlaceSell(ctx context.Context, pair string, rate, amount float64) (OrderResult, error) {
	return p.placeOrder(ctx, types.SideSell, pair, rate, amount)
}

func (p *Poloniex) placeOrder(ctx context.Context, side types.Side, pair string, rate, amount float64) (OrderResult, error) {
	command := string(side)

	params := url.Values{}
	params.Set("currencyPair", pair)
	params.Set("rate", decimal.NewFromFloat(rate).StringFixed(amountPrecision))
	params.Set("amount", decimal.NewFromFloat(amount).StringFixed(amountPrecision))

	var resp orderResponse
	if err := p.private(ctx, command, params, &resp); err != nil {
		return OrderResult{}, err
	}

	result := OrderResult{OrderNumber: string(resp.OrderNumber)}
	for _, t := range resp.ResultingTrades {
		t.OrderNumber = resp.OrderNumber
		rec, err := t.record(command)
		if err != nil {
			return OrderResult{}, err
		}
		result.Trades = append(result.Trades, rec)
	}

	p.logger.Info("order-placed",
		zap.String("pair", pair),
		zap.String("side", command),
		zap.String("order-number", result.OrderNumber),
		zap.Int("resulting-trades", len(result.Trades)))

	return result, nil
}

func (p *Poloniex) public(ctx context.Context, command string, params url.Values, out interface{}) error {
	params.Set("command", command)
	requestURL := fmt.Sprintf("%s%s?%s", p.baseURL, publicPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return &types.TransportError{Command: command, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	return p.do(req, command, out)
}

func (p *Poloniex) private(ctx context.Context, command string, params url.Values, out interface{}) error {
	params.Set("command", command)
	params.Set("nonce", strconv.FormatInt(p.nextNonce(), 10))
	body := params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+tradingPath, strings.NewReader(body))
	if err != nil {
		return &types.TransportError{Command: command, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Key", p.apiKey)
	req.Header.Set("Sign", p.sign(body))

	return p.do(req, command, out)
}

func (p *Poloniex) do(req *http.Request, command string, out interface{}) error {
	start := time.Now()
	defer func() {
		RequestDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	}()

	p.logger.Debug("exchange-request", zap.String("command", command))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		RequestsTotal.WithLabelValues(command, "transport-error").Inc()
		return &types.TransportError{Command: command, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		RequestsTotal.WithLabelValues(command, "transport-error").Inc()
		return &types.TransportError{Command: command, Status: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	// Rejections arrive as {"error": "..."}, sometimes with a 4xx status.
	if msg, ok := errorPayload(body); ok {
		RequestsTotal.WithLabelValues(command, "exchange-error").Inc()
		return &types.ExchangeError{Command: command, Message: msg}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		RequestsTotal.WithLabelValues(command, "transport-error").Inc()
		return &types.TransportError{Command: command, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		RequestsTotal.WithLabelValues(command, "transport-error").Inc()
		return &types.TransportError{Command: command, Status: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	RequestsTotal.WithLabelValues(command, "ok").Inc()
	return nil
}

func errorPayload(body []byte) (string, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return "", false
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return "", false
	}

	return payload.Error, true
}

func (p *Poloniex) sign(body string) string {
	mac := hmac.New(sha512.New, p.secret)
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// nextNonce returns a strictly increasing nonce derived from the clock.
func (p *Poloniex) nextNonce() int64 {
	for {
		last := p.nonce.Load()
		next := p.now().UnixNano() / int64(time.Microsecond)
		if next <= last {
			next = last + 1
		}
		if p.nonce.CompareAndSwap(last, next) {
			return next
		}
	}
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	*f = flexString(strings.Trim(string(b), `"`))
	return nil
}
