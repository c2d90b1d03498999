package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultRatePerSec = 5
	maxRetries        = 3
	baseRetryWait     = 500 * time.Millisecond

	// maxDecimal bounds the precision kept from a quote.
	maxDecimal = 18
)

// Client implements ports.PriceSource over a JSON HTTP price endpoint:
//
//	GET {base}/price?symbol=SUI/USDC
//	{"symbol":"SUI/USDC","price":"3.1245","timestamp":1772438400}
//
// Requests are rate limited and retried with exponential backoff on 429 and
// 5xx responses.
type Client struct {
	http      *http.Client
	base      string
	limiter   *rate.Limiter
	retryWait time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithRate overrides the request rate (requests per second).
func WithRate(perSec float64) Option {
	return func(c *Client) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithRetryWait overrides the first backoff step.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

// NewClient creates a Client for the endpoint rooted at base.
func NewClient(base string, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		base:      base,
		limiter:   rate.NewLimiter(defaultRatePerSec, 1),
		retryWait: baseRetryWait,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type priceResponse struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

// FetchPrice implements ports.PriceSource.
func (c *Client) FetchPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	u := c.base + "/price?symbol=" + url.QueryEscape(symbol)
	var resp priceResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.FetchPrice: %s: %w", symbol, err)
	}
	if resp.Symbol != "" && resp.Symbol != symbol {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.FetchPrice: asked %s, got %s", symbol, resp.Symbol)
	}

	price, dec, err := parsePrice(resp.Price)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.FetchPrice: %s: %w", symbol, err)
	}
	at := time.Unix(resp.Timestamp, 0).UTC()
	if resp.Timestamp == 0 {
		at = time.Now().UTC()
	}
	return domain.PriceQuote{Symbol: symbol, Price: price, Decimal: dec, At: at}, nil
}

// parsePrice turns a decimal string into an integer and its decimal scale.
func parsePrice(s string) (uint64, uint8, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	if !d.IsPositive() {
		return 0, 0, fmt.Errorf("price %q is not positive", s)
	}
	var dec int32
	if e := d.Exponent(); e < 0 {
		dec = -e
	}
	if dec > maxDecimal {
		dec = maxDecimal
	}
	n := d.Shift(dec).Truncate(0).BigInt()
	if !n.IsUint64() {
		return 0, 0, fmt.Errorf("price %q: %w", s, domain.ErrOverflow)
	}
	return n.Uint64(), uint8(dec), nil
}

// get does a rate limited GET with retries.
func (c *Client) get(ctx context.Context, u string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			slog.Warn("pricefeed: retrying", "status", resp.StatusCode, "attempt", attempt+1)
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, honouring ctx.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
