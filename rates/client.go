/*
Package rates resolves exchange rates from public pricing APIs.

Crypto assets are priced through the CoinGecko simple-price endpoint and
fiat currencies through the open.er-api.com latest-rates endpoint. Every
resolution failure degrades to a 1:1 fallback rather than an error: a
payment must never be blocked because a pricing service is down, and
callers can tell a real rate from the fallback through the Known flag
on ledger.Rate.
*/
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vero/finance-engine/ledger"
)

const (
	defaultCryptoBaseURL = "https://api.coingecko.com/api/v3"
	defaultFiatBaseURL   = "https://open.er-api.com/v6"
)

// coinIDs maps ticker symbols to CoinGecko asset identifiers.
var coinIDs = map[string]string{
	"ETH": "ethereum",
	"BTC": "bitcoin",
	"SOL": "solana",
}

// Client fetches exchange rates over HTTP.
type Client struct {
	HTTPClient    *http.Client
	CryptoBaseURL string
	FiatBaseURL   string
	Log           logrus.FieldLogger
}

// NewClient returns a Client with production endpoints and a short timeout.
func NewClient(log logrus.FieldLogger) *Client {
	return &Client{
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
		CryptoBaseURL: defaultCryptoBaseURL,
		FiatBaseURL:   defaultFiatBaseURL,
		Log:           log,
	}
}

// Rate resolves how many units of base one unit of currency is worth.
// Same-currency conversions are exactly 1 and never leave the process.
func (c *Client) Rate(ctx context.Context, currency, base string) ledger.Rate {
	currency = strings.ToUpper(currency)
	base = strings.ToUpper(base)

	if currency == base {
		return ledger.KnownRate(decimal.NewFromInt(1))
	}

	var (
		rate decimal.Decimal
		err  error
	)
	if coinID, ok := coinIDs[currency]; ok {
		rate, err = c.cryptoRate(ctx, coinID, base)
	} else {
		rate, err = c.fiatRate(ctx, currency, base)
	}
	if err != nil {
		c.Log.WithError(err).WithFields(logrus.Fields{
			"currency": currency,
			"base":     base,
		}).Warn("exchange rate lookup failed, falling back to 1:1")
		return ledger.UnknownRate()
	}
	if rate.IsZero() {
		c.Log.WithFields(logrus.Fields{
			"currency": currency,
			"base":     base,
		}).Warn("exchange rate resolved to zero, falling back to 1:1")
		return ledger.UnknownRate()
	}

	return ledger.KnownRate(rate)
}

// cryptoRate asks CoinGecko for the price of one coin in the base currency.
func (c *Client) cryptoRate(ctx context.Context, coinID, base string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		c.CryptoBaseURL, coinID, strings.ToLower(base))

	var payload map[string]map[string]decimal.Decimal
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return decimal.Zero, err
	}

	price, ok := payload[coinID][strings.ToLower(base)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s in %s", coinID, base)
	}
	return price, nil
}

// fiatRate asks the latest-rates endpoint for base->currency and inverts
// it, so the result is currency->base like the crypto path.
func (c *Client) fiatRate(ctx context.Context, currency, base string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/latest/%s", c.FiatBaseURL, base)

	var payload struct {
		Result string                     `json:"result"`
		Rates  map[string]decimal.Decimal `json:"rates"`
	}
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return decimal.Zero, err
	}
	if payload.Result != "success" {
		return decimal.Zero, fmt.Errorf("rates API returned result %q", payload.Result)
	}

	perBase, ok := payload.Rates[currency]
	if !ok || perBase.IsZero() {
		return decimal.Zero, fmt.Errorf("no rate for %s against %s", currency, base)
	}
	return decimal.NewFromInt(1).Div(perBase), nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
