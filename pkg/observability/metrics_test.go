package observability_test

import (
	"testing"

	"github.com/aretw0/observer/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Collect(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	m.CallbackFired("value", "title")
	m.CallbackFired("value", "title")
	m.CallbackFired("model", "")
	m.WatchDeferred()
	m.BindingsChanged(3)
	m.BindingsChanged(-1)
	m.StateChanged("", "pending")
	m.StateChanged("pending", "bound")

	n, err := testutil.GatherAndCount(reg, "observer_callbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per label pair")

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[f.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				key := f.GetName()
				for _, l := range metric.GetLabel() {
					key += ":" + l.GetValue()
				}
				values[key] = metric.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 3.0, values["observer_callbacks_total"])
	assert.Equal(t, 1.0, values["observer_deferred_watches_total"])
	assert.Equal(t, 2.0, values["observer_hook_bindings"])
	assert.Equal(t, 0.0, values["observer_watchers:pending"])
	assert.Equal(t, 1.0, values["observer_watchers:bound"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *observability.Metrics
	assert.NotPanics(t, func() {
		m.CallbackFired("value", "title")
		m.WatchDeferred()
		m.BindingsChanged(1)
		m.StateChanged("pending", "bound")
	})
}
