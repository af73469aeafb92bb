package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.ObserveAction(domain.ActionCreate, domain.StatusApplied)
	r.ObserveAction(domain.ActionCreate, domain.StatusApplied)
	r.ObserveAction(domain.ActionStop, domain.StatusError)
	r.ObservePass(false)
	r.ObservePass(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.actions.WithLabelValues("create", "APPLIED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.actions.WithLabelValues("stop", "ERROR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.passes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.passes.WithLabelValues("failure")))

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2)
}

func TestWriteToTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveAction(domain.ActionDestroy, domain.StatusApplied)

	path := filepath.Join(t.TempDir(), "vmr.prom")
	require.NoError(t, r.WriteToTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `vmr_actions_total{action="destroy",outcome="APPLIED"} 1`)
}
