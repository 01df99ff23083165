package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/batch"
	"github.com/pagebatch/pagebatch/operation"
	"github.com/pagebatch/pagebatch/session"
)

func TestCustomMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := RegisterCustomMetrics(reg)
	require.NoError(t, err)

	m.StateChanged(0, batch.StateIdle, batch.StateResolving)
	m.StateChanged(0, batch.StateResolving, batch.StateInstalling)
	m.StateChanged(1, batch.StateIdle, batch.StateResolving)

	m.ItemFinished(batch.Report{
		Index:           0,
		Engine:          api.EngineChromium,
		Operation:       operation.KindGetText,
		ResolveAttempts: 2,
		Installed:       true,
		Duration:        1500 * time.Millisecond,
	})
	m.ItemFinished(batch.Report{
		Index:           1,
		Engine:          api.EngineChromium,
		Operation:       operation.KindGetText,
		ResolveAttempts: 2,
		Installed:       true,
		InstallErr:      errors.New("offline"),
		Err:             &session.LaunchError{Engine: api.EngineChromium, Err: errors.New("missing")},
	})

	assert.InDelta(t, 2, testutil.ToFloat64(m.StateTransitions.WithLabelValues("resolving")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Items.WithLabelValues("chromium", "getText", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Items.WithLabelValues("chromium", "getText", "launch")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.ResolveAttempts.WithLabelValues("chromium")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.InstallAttempts.WithLabelValues("chromium", "failed")), 0)

	expected := `
# HELP pagebatch_install_attempts_total Number of engine installs, by result.
# TYPE pagebatch_install_attempts_total counter
pagebatch_install_attempts_total{engine="chromium",result="failed"} 1
pagebatch_install_attempts_total{engine="chromium",result="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pagebatch_install_attempts_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ItemDuration))
}

func TestCustomMetricsUnknownLabels(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := RegisterCustomMetrics(reg)
	require.NoError(t, err)

	for _, r := range []batch.Report{
		{Engine: "chrome-canary", Operation: operation.KindNavigate, ResolveAttempts: 1},
		{Engine: api.EngineFirefox, Operation: "scroll"},
		{Engine: "", Operation: ""},
	} {
		r.Err = errors.New("invalid item")
		m.ItemFinished(r)
	}

	expected := `
# HELP pagebatch_items_total Number of batch items processed, by outcome.
# TYPE pagebatch_items_total counter
pagebatch_items_total{engine="firefox",operation="unknown",outcome="unknown"} 1
pagebatch_items_total{engine="unknown",operation="navigate",outcome="unknown"} 1
pagebatch_items_total{engine="unknown",operation="unknown",outcome="unknown"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pagebatch_items_total"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.ResolveAttempts.WithLabelValues("unknown")), 0)
}

func TestRegisterTwice(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := RegisterCustomMetrics(reg)
	require.NoError(t, err)
	_, err = RegisterCustomMetrics(reg)
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)
}
