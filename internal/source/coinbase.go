package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"arcana/internal/trademodel"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
)

const coinbaseBaseURL = "https://api.exchange.coinbase.com"

// Coinbase is a DataSource backed by Coinbase Exchange's public market
// data API. Each request attempt is bounded by a 30s timeout and retried
// with exponential backoff (2s, 4s, 8s, 16s) on transient failures —
// network errors and 5xx/429 responses — never on 4xx client errors.
type Coinbase struct {
	client  *retryablehttp.Client
	baseURL string
}

// NewCoinbase builds a Coinbase data source with the retry policy from
// §6's failure-semantics table.
func NewCoinbase() *Coinbase {
	client := retryablehttp.NewClient()
	client.RetryMax = 4
	client.RetryWaitMin = 2 * time.Second
	client.RetryWaitMax = 16 * time.Second
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = newRetryLogger()

	return &Coinbase{client: client, baseURL: coinbaseBaseURL}
}

func (c *Coinbase) Name() string { return "coinbase" }

type coinbaseTrade struct {
	TradeID int64  `json:"trade_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Time    string `json:"time"`
	Side    string `json:"side"`
}

func (c *Coinbase) FetchTrades(ctx context.Context, pair string, start, end time.Time, limit int) ([]trademodel.Trade, error) {
	u := fmt.Sprintf("%s/products/%s/trades", c.baseURL, pair)
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("start", start.UTC().Format(time.RFC3339Nano))
	q.Set("end", end.UTC().Format(time.RFC3339Nano))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("source: coinbase: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: coinbase: fetch trades for %s: %w", pair, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("source: coinbase: unexpected status %d for %s: %s", resp.StatusCode, pair, body)
	}

	var raw []coinbaseTrade
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("source: coinbase: decode response: %w", err)
	}

	trades := make([]trademodel.Trade, 0, len(raw))
	for _, rt := range raw {
		trade, err := rt.toTrade(pair)
		if err != nil {
			return nil, fmt.Errorf("source: coinbase: parse trade %d: %w", rt.TradeID, err)
		}
		trades = append(trades, trade)
	}
	// Coinbase returns newest-first; the pipeline needs ascending order.
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

func (rt coinbaseTrade) toTrade(pair string) (trademodel.Trade, error) {
	price, err := decimal.NewFromString(rt.Price)
	if err != nil {
		return trademodel.Trade{}, fmt.Errorf("price %q: %w", rt.Price, err)
	}
	size, err := decimal.NewFromString(rt.Size)
	if err != nil {
		return trademodel.Trade{}, fmt.Errorf("size %q: %w", rt.Size, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, rt.Time)
	if err != nil {
		return trademodel.Trade{}, fmt.Errorf("time %q: %w", rt.Time, err)
	}

	// Coinbase's `side` names the maker's side; the taker (who crossed
	// the spread) took the opposite side.
	side := trademodel.SideUnknown
	switch rt.Side {
	case "buy":
		side = trademodel.SideSell
	case "sell":
		side = trademodel.SideBuy
	}

	return trademodel.Trade{
		Timestamp: ts.UTC(),
		TradeID:   strconv.FormatInt(rt.TradeID, 10),
		Source:    "coinbase",
		Pair:      pair,
		Price:     price,
		Size:      size,
		Side:      side,
	}, nil
}

func (c *Coinbase) FetchAllTrades(ctx context.Context, pair string, start, end time.Time) ([]trademodel.Trade, error) {
	return FetchAllTrades(ctx, c, pair, start, end)
}

func (c *Coinbase) SupportedPairs(ctx context.Context) ([]string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products", nil)
	if err != nil {
		return nil, fmt.Errorf("source: coinbase: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: coinbase: fetch products: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("source: coinbase: unexpected status %d: %s", resp.StatusCode, body)
	}

	var products []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("source: coinbase: decode products: %w", err)
	}
	pairs := make([]string, len(products))
	for i, p := range products {
		pairs[i] = p.ID
	}
	return pairs, nil
}

// retryLogger adapts retryablehttp's leveled logger interface to the
// standard logger, so retries show up in the same log stream as
// everything else instead of going to a separate, silent default.
type retryLogger struct{ l *log.Logger }

func newRetryLogger() *retryLogger { return &retryLogger{l: log.Default()} }

func (r *retryLogger) Error(msg string, keysAndValues ...interface{}) { r.logf("ERROR", msg, keysAndValues) }
func (r *retryLogger) Info(msg string, keysAndValues ...interface{})  { r.logf("INFO", msg, keysAndValues) }
func (r *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (r *retryLogger) Warn(msg string, keysAndValues ...interface{})  { r.logf("WARN", msg, keysAndValues) }

func (r *retryLogger) logf(level, msg string, kv []interface{}) {
	r.l.Printf("source: coinbase: [%s] %s %v", level, msg, kv)
}
