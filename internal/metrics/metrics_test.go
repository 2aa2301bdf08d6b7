package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("styles", time.Second)
	r.IncBuildOutcome("success")
	r.SetLiveReloadClients(3)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("styles", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("styles", ResultWarning)
	pr.IncBuildOutcome("partial")
	pr.AddStageFiles("images", 2, 5, 1)
	pr.AddCacheHits("images", 4)
	pr.IncWatchEvent("scripts")
	pr.IncLiveReloadBroadcast("inject")
	pr.SetLiveReloadClients(2)

	require.InDelta(t, 1, testutil.ToFloat64(pr.stageResults.WithLabelValues("styles", "warning")), 0)
	require.InDelta(t, 5, testutil.ToFloat64(pr.stageFiles.WithLabelValues("images", "skipped")), 0)
	require.InDelta(t, 4, testutil.ToFloat64(pr.cacheHits.WithLabelValues("images")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(pr.reloadClients), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncBuildOutcome("success")

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `sitebuilder_build_outcomes_total{outcome="success"} 1`)
}
