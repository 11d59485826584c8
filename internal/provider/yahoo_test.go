package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
)

const koSummary = `{"quoteSummary":{"result":[{
	"price":{"regularMarketPrice":{"raw":60.5,"fmt":"60.50"},"currency":"USD","longName":"The Coca-Cola Company","shortName":"Coca-Cola"},
	"summaryDetail":{"dividendRate":{"raw":1.94,"fmt":"1.94"},"dividendYield":{"raw":0.0321,"fmt":"3.21%"},"payoutRatio":{"raw":0.74},"trailingPE":{"raw":24.1}},
	"assetProfile":{"sector":"Consumer Defensive","industry":"Beverages—Non-Alcoholic","country":"United States"},
	"defaultKeyStatistics":{}
}],"error":null}}`

const koChart = `{"chart":{"result":[{"meta":{"symbol":"KO"},"events":{"dividends":{
	"1694613600":{"amount":0.46,"date":1694613600},
	"1663077600":{"amount":0.44,"date":1663077600},
	"1702476000":{"amount":0.46,"date":1702476000}
}}}],"error":null}}`

const notFound = `{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found for ticker symbol: NOPE"}}}`

type yahooStub struct {
	server      *httptest.Server
	crumbCalls  atomic.Int32
	flakyCalls  atomic.Int32
	rejectCrumb atomic.Bool
}

func newYahooStub(t *testing.T) *yahooStub {
	t.Helper()
	stub := &yahooStub{}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "A3", Value: "session", Path: "/"})
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		stub.crumbCalls.Add(1)
		if _, err := r.Cookie("A3"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("crumb-1"))
	})
	mux.HandleFunc("/v10/finance/quoteSummary/KO", func(w http.ResponseWriter, r *http.Request) {
		if stub.rejectCrumb.CompareAndSwap(true, false) || r.URL.Query().Get("crumb") != "crumb-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "price,summaryDetail,assetProfile,defaultKeyStatistics", r.URL.Query().Get("modules"))
		w.Write([]byte(koSummary))
	})
	mux.HandleFunc("/v8/finance/chart/KO", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "div", r.URL.Query().Get("events"))
		w.Write([]byte(koChart))
	})
	mux.HandleFunc("/v10/finance/quoteSummary/NOPE", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(notFound))
	})
	mux.HandleFunc("/v10/finance/quoteSummary/FLAKY", func(w http.ResponseWriter, r *http.Request) {
		if stub.flakyCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"quoteSummary":{"result":[{"price":{"regularMarketPrice":{"raw":10},"currency":"EUR"}}],"error":null}}`))
	})
	mux.HandleFunc("/v8/finance/chart/FLAKY", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *yahooStub) client(opts ...YahooOption) *Yahoo {
	base := []YahooOption{
		WithBaseURL(s.server.URL),
		WithRequestInterval(0),
		WithMaxRetries(2),
		WithLogger(zerolog.Nop()),
		WithClock(func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }),
	}
	return NewYahoo(append(base, opts...)...)
}

func TestYahoo_Fetch(t *testing.T) {
	stub := newYahooStub(t)
	y := stub.client()

	snap, err := y.Fetch(context.Background(), "ko")
	require.NoError(t, err)

	assert.Equal(t, "KO", snap.Identifier)
	assert.Equal(t, "The Coca-Cola Company", snap.Name)
	assert.Equal(t, "USD", snap.Currency)
	assert.Equal(t, "Consumer Defensive", snap.Sector)
	assert.Equal(t, "United States", snap.Country)
	assert.InDelta(t, 60.5, *snap.Price, 1e-9)
	assert.InDelta(t, 1.94, *snap.AnnualDividend, 1e-9)
	assert.InDelta(t, 0.0321, *snap.DividendYield, 1e-9)
	assert.InDelta(t, 0.74, *snap.PayoutRatio, 1e-9)
	assert.Equal(t, models.UnitFraction, snap.PayoutUnit, "Yahoo reports payout as a fraction")
	assert.InDelta(t, 24.1, *snap.PriceEarnings, 1e-9)
	assert.Equal(t, 2026, snap.FetchedAt.Year())

	require.Len(t, snap.DividendHistory, 3)
	assert.True(t, snap.DividendHistory[0].Date.Before(snap.DividendHistory[1].Date))
	assert.InDelta(t, 0.44, snap.DividendHistory[0].Amount, 1e-9)

	_, err = y.Fetch(context.Background(), "KO")
	require.NoError(t, err)
	assert.Equal(t, int32(1), stub.crumbCalls.Load(), "crumb is cached across fetches")
}

func TestYahoo_RefreshesCrumbOnAuthFailure(t *testing.T) {
	stub := newYahooStub(t)
	y := stub.client()

	_, err := y.Fetch(context.Background(), "KO")
	require.NoError(t, err)

	stub.rejectCrumb.Store(true)
	_, err = y.Fetch(context.Background(), "KO")
	require.NoError(t, err)
	assert.Equal(t, int32(2), stub.crumbCalls.Load())
}

func TestYahoo_NotFound(t *testing.T) {
	stub := newYahooStub(t)
	y := stub.client()

	_, err := y.Fetch(context.Background(), "NOPE")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotFound)

	var fe *apperrors.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "NOPE", fe.Symbol)
	assert.Equal(t, http.StatusNotFound, fe.Status)
}

func TestYahoo_RetriesTransientFailure(t *testing.T) {
	stub := newYahooStub(t)
	y := stub.client()

	snap, err := y.Fetch(context.Background(), "FLAKY")
	require.NoError(t, err, "503 is retried")
	assert.InDelta(t, 10, *snap.Price, 1e-9)
	assert.Nil(t, snap.AnnualDividend, "missing fields stay absent")
	assert.Empty(t, snap.DividendHistory, "history failure keeps the quote")
	assert.Equal(t, int32(2), stub.flakyCalls.Load())
}

func TestParseSummary_BareNumbers(t *testing.T) {
	snap, err := parseSummary("X", []byte(`{"quoteSummary":{"result":[{"price":{"regularMarketPrice":12.5,"shortName":"X Corp"}}]}}`))
	require.NoError(t, err)
	assert.InDelta(t, 12.5, *snap.Price, 1e-9)
	assert.Equal(t, "X Corp", snap.Name)

	_, err = parseSummary("X", []byte(`not json`))
	assert.Error(t, err)

	_, err = parseSummary("X", []byte(`{"quoteSummary":{"result":[]}}`))
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotFound)
}

func TestValidateKind(t *testing.T) {
	assert.NoError(t, ValidateKind("yahoo"))
	assert.NoError(t, ValidateKind("Static"))
	assert.ErrorIs(t, ValidateKind("bloomberg"), apperrors.ErrUnsupportedProviderKind)
}
