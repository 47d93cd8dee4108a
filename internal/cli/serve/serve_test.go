package serve

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/coral-sampler/internal/config"
	"github.com/coral-mesh/coral-sampler/internal/testutil"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/httpsampler"
)

func TestNewMux_Endpoints(t *testing.T) {
	mux, err := NewMux(config.Default(), testutil.NewTestLogger(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, httpsampler.ProfilePath+"?seconds=0.1&hz=100", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "coral_sampler_sessions_started_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestNewMux_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	mux, err := NewMux(cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Workload.Workers = 1

	ctx, cancel := testutil.NewTestContext()
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, lis, cfg, testutil.NewTestLogger(t))
	}()

	url := fmt.Sprintf("http://%s/healthz", lis.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:gosec // G107: test URL.
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && strings.TrimSpace(string(b)) == "ok"
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
