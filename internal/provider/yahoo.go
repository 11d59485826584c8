package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-querystring/query"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/logging"
	"dividend-screener/internal/models"
)

const (
	// DefaultYahooBaseURL is the Yahoo Finance query host.
	DefaultYahooBaseURL = "https://query2.finance.yahoo.com"

	// DefaultYahooSessionURL hands out the session cookie the crumb is bound to.
	DefaultYahooSessionURL = "https://fc.yahoo.com"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 20 * time.Second

	// DefaultRequestInterval is the politeness delay between requests.
	DefaultRequestInterval = 250 * time.Millisecond

	// DefaultMaxRetries bounds retries on transient failures.
	DefaultMaxRetries = 3

	// DefaultHistoryRange is how far back dividend history is requested.
	DefaultHistoryRange = "10y"

	crumbKey     = "crumb"
	crumbTTL     = 30 * time.Minute
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	summaryProbe = "price,summaryDetail,assetProfile,defaultKeyStatistics"
)

// Yahoo fetches snapshots from the Yahoo Finance quoteSummary and chart
// endpoints.
type Yahoo struct {
	baseURL      string
	sessionURL   string
	httpClient   *http.Client
	limiter      *rate.Limiter
	crumbs       *cache.Cache
	maxRetries   uint64
	historyRange string
	logger       zerolog.Logger
	now          func() time.Time
}

// YahooOption configures the Yahoo client.
type YahooOption func(*Yahoo)

// WithBaseURL points the client at a different host, for tests.
func WithBaseURL(baseURL string) YahooOption {
	return func(y *Yahoo) {
		y.baseURL = strings.TrimRight(baseURL, "/")
		y.sessionURL = y.baseURL + "/"
	}
}

// WithHTTPClient sets a custom HTTP client. A cookie jar is added if
// the client has none.
func WithHTTPClient(c *http.Client) YahooOption {
	return func(y *Yahoo) {
		y.httpClient = c
	}
}

// WithRequestInterval sets the minimum delay between requests shared by
// all callers. Zero disables the limiter.
func WithRequestInterval(d time.Duration) YahooOption {
	return func(y *Yahoo) {
		if d <= 0 {
			y.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		y.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) YahooOption {
	return func(y *Yahoo) {
		if n < 0 {
			n = 0
		}
		y.maxRetries = uint64(n)
	}
}

// WithHistoryRange sets the chart range used for dividend history.
func WithHistoryRange(r string) YahooOption {
	return func(y *Yahoo) {
		if r != "" {
			y.historyRange = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) YahooOption {
	return func(y *Yahoo) {
		y.logger = logger
	}
}

// WithClock overrides the time source used to stamp snapshots.
func WithClock(now func() time.Time) YahooOption {
	return func(y *Yahoo) {
		y.now = now
	}
}

// NewYahoo creates a Yahoo Finance client.
func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		baseURL:      DefaultYahooBaseURL,
		sessionURL:   DefaultYahooSessionURL,
		limiter:      rate.NewLimiter(rate.Every(DefaultRequestInterval), 1),
		crumbs:       cache.New(crumbTTL, time.Hour),
		maxRetries:   DefaultMaxRetries,
		historyRange: DefaultHistoryRange,
		logger:       zerolog.Nop(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(y)
	}

	if y.httpClient == nil {
		y.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if y.httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			y.logger.Error().Err(err).Msg("Failed to create cookie jar")
		} else {
			y.httpClient.Jar = jar
		}
	}

	return y
}

// Name returns the provider name.
func (y *Yahoo) Name() string {
	return KindYahoo
}

type summaryParams struct {
	Modules string `url:"modules"`
	Crumb   string `url:"crumb,omitempty"`
}

type chartParams struct {
	Range    string `url:"range"`
	Interval string `url:"interval"`
	Events   string `url:"events"`
	Crumb    string `url:"crumb,omitempty"`
}

// Fetch retrieves quote, profile and dividend history for one symbol.
// A failed history request still returns the quote fields.
func (y *Yahoo) Fetch(ctx context.Context, symbol string) (*models.Snapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	logger := logging.WithSymbol(y.logger, symbol)

	summary, err := y.getWithCrumb(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), func(crumb string) interface{} {
		return summaryParams{Modules: summaryProbe, Crumb: crumb}
	})
	if err != nil {
		return nil, apperrors.NewFetchError(y.Name(), symbol, statusOf(err), err)
	}

	snap, err := parseSummary(symbol, summary)
	if err != nil {
		return nil, apperrors.NewFetchError(y.Name(), symbol, 0, err)
	}
	snap.FetchedAt = y.now()

	chart, err := y.getWithCrumb(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), func(crumb string) interface{} {
		return chartParams{Range: y.historyRange, Interval: "1mo", Events: "div", Crumb: crumb}
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Dividend history unavailable")
		return snap, nil
	}
	snap.DividendHistory = parseDividends(chart)

	return snap, nil
}

// statusError carries the HTTP status of a failed request.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func statusOf(err error) int {
	var se *statusError
	if apperrors.As(err, &se) {
		return se.status
	}
	return 0
}

// getWithCrumb performs a rate-limited GET, retrying transient failures
// with exponential backoff. An auth failure drops the cached crumb so the
// next attempt obtains a fresh session.
func (y *Yahoo) getWithCrumb(ctx context.Context, path string, params func(crumb string) interface{}) ([]byte, error) {
	var body []byte

	operation := func() error {
		crumb, err := y.crumb(ctx)
		if err != nil {
			y.logger.Debug().Err(err).Msg("Continuing without crumb")
		}

		values, err := query.Values(params(crumb))
		if err != nil {
			return backoff.Permanent(err)
		}

		body, err = y.get(ctx, y.baseURL+path+"?"+values.Encode())
		if err == nil {
			return nil
		}

		switch statusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			y.crumbs.Delete(crumbKey)
			return err
		}
		if apperrors.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, y.maxRetries), ctx))
	return body, err
}

// get performs one rate-limited GET and classifies the failure.
func (y *Yahoo) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTimeout, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := y.httpClient.Do(req)
	if err != nil {
		logging.LogAPICall(y.logger, http.MethodGet, req.URL.Path, 0, time.Since(start), err)
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(apperrors.ErrTimeout, err.Error())
		}
		return nil, apperrors.Wrap(apperrors.ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	logging.LogAPICall(y.logger, http.MethodGet, req.URL.Path, resp.StatusCode, time.Since(start), err)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrProviderUnavailable, err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, &statusError{status: resp.StatusCode, err: apperrors.ErrSymbolNotFound}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &statusError{status: resp.StatusCode, err: apperrors.ErrRateLimited}
	case resp.StatusCode >= 500:
		return nil, &statusError{status: resp.StatusCode, err: apperrors.ErrProviderUnavailable}
	default:
		return nil, &statusError{
			status: resp.StatusCode,
			err:    fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}
}

// crumb returns the cached session crumb, obtaining a new one if needed.
func (y *Yahoo) crumb(ctx context.Context) (string, error) {
	if v, ok := y.crumbs.Get(crumbKey); ok {
		return v.(string), nil
	}

	// The session endpoint only sets a cookie; its status is irrelevant.
	if req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.sessionURL, nil); err == nil {
		req.Header.Set("User-Agent", userAgent)
		if resp, err := y.httpClient.Do(req); err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	body, err := y.get(ctx, y.baseURL+"/v1/test/getcrumb")
	if err != nil {
		return "", apperrors.Wrap(err, "failed to obtain crumb")
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.ContainsAny(crumb, "<{ ") {
		return "", apperrors.New("empty or malformed crumb")
	}

	y.crumbs.Set(crumbKey, crumb, cache.DefaultExpiration)
	y.logger.Debug().Msg("Obtained Yahoo session crumb")
	return crumb, nil
}

// parseSummary maps a quoteSummary payload onto a snapshot. Missing
// fields stay absent.
func parseSummary(symbol string, body []byte) (*models.Snapshot, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.NewDataError("quoteSummary", symbol, "invalid JSON", nil)
	}
	if code := gjson.GetBytes(body, "quoteSummary.error.code"); code.Exists() && code.String() != "" {
		return nil, apperrors.Wrapf(apperrors.ErrSymbolNotFound, "%s: %s", symbol, gjson.GetBytes(body, "quoteSummary.error.description").String())
	}

	result := gjson.GetBytes(body, "quoteSummary.result.0")
	if !result.Exists() {
		return nil, apperrors.Wrapf(apperrors.ErrSymbolNotFound, "%s: empty result", symbol)
	}

	snap := &models.Snapshot{
		Identifier:     symbol,
		Name:           firstString(result, "price.longName", "price.shortName"),
		Currency:       firstString(result, "price.currency", "summaryDetail.currency"),
		Sector:         result.Get("assetProfile.sector").String(),
		Industry:       result.Get("assetProfile.industry").String(),
		Country:        result.Get("assetProfile.country").String(),
		Price:          rawNumber(result, "price.regularMarketPrice", "summaryDetail.regularMarketPreviousClose", "summaryDetail.previousClose"),
		AnnualDividend: rawNumber(result, "summaryDetail.dividendRate", "summaryDetail.trailingAnnualDividendRate"),
		DividendYield:  rawNumber(result, "summaryDetail.dividendYield", "summaryDetail.trailingAnnualDividendYield"),
		PayoutRatio:    rawNumber(result, "summaryDetail.payoutRatio"),
		PayoutUnit:     models.UnitFraction,
		PriceEarnings:  rawNumber(result, "summaryDetail.trailingPE", "defaultKeyStatistics.trailingPE"),
	}

	if snap.Price == nil && snap.Name == "" {
		return nil, apperrors.Wrapf(apperrors.ErrSymbolNotFound, "%s: no quote data", symbol)
	}
	return snap, nil
}

// parseDividends reads the dividend events of a chart payload in date order.
func parseDividends(body []byte) []models.DividendPayment {
	events := gjson.GetBytes(body, "chart.result.0.events.dividends")
	if !events.Exists() {
		return nil
	}

	var out []models.DividendPayment
	events.ForEach(func(_, ev gjson.Result) bool {
		amount := ev.Get("amount").Float()
		date := ev.Get("date").Int()
		if amount > 0 && date > 0 {
			out = append(out, models.DividendPayment{
				Date:   time.Unix(date, 0).UTC(),
				Amount: amount,
			})
		}
		return true
	})

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// rawNumber returns the first present numeric value among paths. Yahoo
// wraps numbers as {"raw": x, "fmt": "..."}; bare numbers are accepted too.
func rawNumber(r gjson.Result, paths ...string) *float64 {
	for _, p := range paths {
		v := r.Get(p)
		if v.IsObject() {
			v = v.Get("raw")
		}
		if v.Type == gjson.Number {
			return models.Float(v.Float())
		}
	}
	return nil
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := strings.TrimSpace(r.Get(p).String()); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
