package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/resilience"
)

func failingServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchAttemptsOnceByDefault(t *testing.T) {
	var hits int32
	srv := failingServer(t, &hits)

	f := NewFetcher(config.Default().Assets, nil)
	_, err := f.Fetch(context.Background(), srv.URL+"/a.png")

	assert.ErrorIs(t, err, ErrStatus)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchRetriesWhenConfigured(t *testing.T) {
	var hits int32
	srv := failingServer(t, &hits)

	cfg := config.Default().Assets
	cfg.Retries = 2
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond

	_, err := NewFetcher(cfg, nil).Fetch(context.Background(), srv.URL+"/a.png")
	assert.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchOpensBreakerPerOrigin(t *testing.T) {
	var hits int32
	bad := failingServer(t, &hits)
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngHeader)
	}))
	defer good.Close()

	f := NewFetcher(config.Default().Assets, nil)
	for i := 0; i < 5; i++ {
		_, err := f.Fetch(context.Background(), bad.URL+"/a.png")
		require.Error(t, err)
	}

	_, err := f.Fetch(context.Background(), bad.URL+"/a.png")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits))

	body, err := f.Fetch(context.Background(), good.URL+"/b.png")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, body)
	assert.Equal(t, resilience.StateOpen, f.BreakerStates()[bad.URL])
}

func TestFetchRejectsBadURL(t *testing.T) {
	_, err := NewFetcher(config.Default().Assets, nil).Fetch(context.Background(), "not a url")
	assert.Error(t, err)
}
