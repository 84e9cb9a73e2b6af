package exchangerates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/core/ports/providers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const latestBody = `{
	"success": true,
	"timestamp": 1672531200,
	"base": "EUR",
	"date": "2023-01-01",
	"rates": {"PLN": 4.22045, "USD": 1.08087, "TRY": "31.2212"}
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchLatestRates_Success(t *testing.T) {
	var gotQuery map[string][]string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/latest", r.URL.Path)
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(latestBody))
	})

	client := NewClient(srv.URL+"/v1/", "secret", time.Second)
	rates, err := client.FetchLatestRates(context.Background(), "EUR")
	require.NoError(t, err)

	assert.Equal(t, []string{"secret"}, gotQuery["access_key"])
	assert.NotContains(t, gotQuery, "base")

	assert.True(t, rates.Success)
	assert.Equal(t, "EUR", rates.Base)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), rates.Date)
	require.Len(t, rates.Rates, 3)
	assert.True(t, decimal.RequireFromString("4.22045").Equal(rates.Rates["PLN"]))
	assert.True(t, decimal.RequireFromString("1.08087").Equal(rates.Rates["USD"]))
	assert.True(t, decimal.RequireFromString("31.2212").Equal(rates.Rates["TRY"]))
}

func TestFetchLatestRates_SendsNonDefaultBase(t *testing.T) {
	var gotBase string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotBase = r.URL.Query().Get("base")
		_, _ = w.Write([]byte(`{"success":true,"base":"USD","date":"2023-01-01","rates":{"EUR":0.92}}`))
	})

	rates, err := NewClient(srv.URL, "k", time.Second).FetchLatestRates(context.Background(), "usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", gotBase)
	assert.Equal(t, "USD", rates.Base)
}

func TestFetchLatestRates_ProviderReportedFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":101,"type":"invalid_access_key","info":"You have not supplied a valid API Access Key."}}`))
	})

	rates, err := NewClient(srv.URL, "bad", time.Second).FetchLatestRates(context.Background(), "EUR")
	require.NoError(t, err)
	assert.False(t, rates.Success)
	assert.Contains(t, rates.ErrorInfo, "invalid_access_key")
	assert.Contains(t, rates.ErrorInfo, "code 101")
	assert.Empty(t, rates.Rates)
}

func TestFetchLatestRates_ClientErrorStatusWithBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":101,"type":"invalid_access_key"}}`))
	})

	rates, err := NewClient(srv.URL, "bad", time.Second).FetchLatestRates(context.Background(), "EUR")
	require.NoError(t, err)
	assert.False(t, rates.Success)
	assert.Equal(t, "status 401: code 101: invalid_access_key", rates.ErrorInfo)
}

func TestFetchLatestRates_TransientStatuses(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			})

			_, err := NewClient(srv.URL, "k", time.Second).FetchLatestRates(context.Background(), "EUR")
			require.Error(t, err)
			assert.ErrorIs(t, err, providers.ErrTransient)
		})
	}
}

func TestFetchLatestRates_UnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "secret-key", time.Second).FetchLatestRates(context.Background(), "EUR")
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrTransient)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestFetchLatestRates_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := NewClient(srv.URL, "k", 50*time.Millisecond).FetchLatestRates(context.Background(), "EUR")
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrTransient)
}

func TestFetchLatestRates_CancelledContextIsNotTransient(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(latestBody))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL, "k", time.Second).FetchLatestRates(ctx, "EUR")
	require.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrTransient)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchLatestRates_MalformedPayloadIsPermanent(t *testing.T) {
	cases := map[string]string{
		"not json":     `<html>oops</html>`,
		"missing date": `{"success":true,"base":"EUR","rates":{"PLN":4.2}}`,
		"bad date":     `{"success":true,"base":"EUR","date":"01/01/2023","rates":{"PLN":4.2}}`,
		"no rates":     `{"success":true,"base":"EUR","date":"2023-01-01","rates":{}}`,
		"missing base": `{"success":true,"date":"2023-01-01","rates":{"PLN":4.2}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			rates, err := NewClient(srv.URL, "k", time.Second).FetchLatestRates(context.Background(), "EUR")
			require.Error(t, err)
			assert.Nil(t, rates)
			assert.NotErrorIs(t, err, providers.ErrTransient)
		})
	}
}
