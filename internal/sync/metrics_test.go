package sync

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "fieldflow_refreshes_total")
	assert.Contains(t, names, "fieldflow_optimistic_updates_total")
	assert.Contains(t, names, "fieldflow_outbox_flushes_total")
	assert.Contains(t, names, "fieldflow_location_reports_total")
	assert.Contains(t, names, "fieldflow_forced_logouts_total")
}
