package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()

	r.ObserveNormalized("text", "text", false)
	r.ObserveNormalized("text", "text", true)
	r.ObserveMissing("agency", "due_date", "agency")
	r.ObserveUpsert(true)
	r.ObserveUpsert(false)
	r.ObserveUpsert(false)
	r.ObserveDecision("Hold", 55)
	r.ObserveFailure("store")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.DocumentsNormalized.WithLabelValues("text", "text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.EmptyNormalizations))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.FieldsMissing.WithLabelValues("agency")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Upserts.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Upserts.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Decisions.WithLabelValues("Hold")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Failures.WithLabelValues("store")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.Scores))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveNormalized("pdf", "pdf", true)
	r.ObserveMissing("title")
	r.ObserveUpsert(true)
	r.ObserveDecision("Ignore", -10)
	r.ObserveFailure("score")
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
	assert.Nil(t, r.Registry())
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveUpsert(true)

	path := filepath.Join(t.TempDir(), "bidsense.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bidsense_upserts_total{outcome="created"} 1`)
}
