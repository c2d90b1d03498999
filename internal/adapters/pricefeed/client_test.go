package pricefeed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/dovault/internal/adapters/oracle"
	"github.com/alejandrodnm/dovault/internal/adapters/pricefeed"
	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(url string) *pricefeed.Client {
	return pricefeed.NewClient(url, pricefeed.WithRate(1000), pricefeed.WithRetryWait(time.Millisecond))
}

func TestClient_FetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price", r.URL.Path)
		assert.Equal(t, "SUI/USDC", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"SUI/USDC","price":"3.1245","timestamp":1772438400}`))
	}))
	defer srv.Close()

	q, err := newClient(srv.URL).FetchPrice(context.Background(), "SUI/USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(31_245), q.Price)
	assert.Equal(t, uint8(4), q.Decimal)
	assert.Equal(t, time.Unix(1772438400, 0).UTC(), q.At)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"price":"2"}`))
	}))
	defer srv.Close()

	q, err := newClient(srv.URL).FetchPrice(context.Background(), "SUI/USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), q.Price)
	assert.Equal(t, uint8(0), q.Decimal)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Errors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `unknown symbol`},
		{"wrong symbol", http.StatusOK, `{"symbol":"ETH/USDC","price":"1"}`},
		{"negative", http.StatusOK, `{"price":"-1"}`},
		{"garbage price", http.StatusOK, `{"price":"abc"}`},
		{"overflow", http.StatusOK, `{"price":"99999999999999999999999"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).FetchPrice(context.Background(), "SUI/USDC")
			assert.Error(t, err)
		})
	}
}

func TestClient_RefreshesOracle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":"3.12","timestamp":1772438400}`))
	}))
	defer srv.Close()

	o := oracle.NewFixture(oracle.Feed{
		ID:        "SUI/USDC",
		Tokens:    domain.OracleTokens{BaseSymbol: "SUI", QuoteSymbol: "USDC"},
		Decimal:   8,
		Staleness: time.Hour,
	})
	require.NoError(t, o.Refresh(context.Background(), newClient(srv.URL)))

	price, dec, err := o.GetPrice(context.Background(), "SUI/USDC", time.Unix(1772438400, 0).Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, uint64(312_000_000), price)
	assert.Equal(t, uint8(8), dec)
}
