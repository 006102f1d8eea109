package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPools_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"pool":"p1","chain":"Ethereum","project":"aave-v3","symbol":"USDC","tvlUsd":50000000,"apy":8,"exposure":"single","stablecoin":true},
			{"pool":"p2","chain":"Polygon","project":"curve-dex","symbol":"USDC-DAI","tvlUsd":8000000,"apy":null,"il7d":-0.4}
		]}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 5*time.Second)
	pools, err := client.FetchPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 2)

	assert.Equal(t, "p1", pools[0].Pool)
	require.NotNil(t, pools[0].APY)
	assert.Equal(t, 8.0, *pools[0].APY)

	assert.Nil(t, pools[1].APY, "Null APY must survive decoding as absent")
	require.NotNil(t, pools[1].IL7D)
	assert.Equal(t, -0.4, *pools[1].IL7D)
}

func TestFetchPools_NonOKStatus(t *testing.T) {
	// 404 is not retried by the transport, so the status branch sees it.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such route", http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 5*time.Second)
	_, err := client.FetchPools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "no such route", "Response body is echoed for diagnosis")
}

func TestFetchPools_ServerErrorExhaustsRetries(t *testing.T) {
	var attempts int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "upstream maintenance", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 5*time.Second)
	_, err := client.FetchPools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up", "5xx responses are retried then reported as exhausted")
	assert.Equal(t, 4, attempts, "Initial attempt plus three retries")
}

func TestFetchPools_EmptyPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 5*time.Second)
	_, err := client.FetchPools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pools returned")
}

func TestFetchPools_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": "not-an-array"`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 5*time.Second)
	_, err := client.FetchPools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}
