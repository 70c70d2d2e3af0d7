package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordLoad(t *testing.T) {
	before := testutil.ToFloat64(RecordsTotal.WithLabelValues("user", "loaded"))
	RecordLoad("user", 3, 2, 0)

	assert.Equal(t, before+3, testutil.ToFloat64(RecordsTotal.WithLabelValues("user", "loaded")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(RecordsTotal.WithLabelValues("user", "duplicate")), 2.0)
}

func TestRecordImport(t *testing.T) {
	before := testutil.ToFloat64(ImportsTotal.WithLabelValues("failed"))
	RecordImport("failed", 0.2)
	assert.Equal(t, before+1, testutil.ToFloat64(ImportsTotal.WithLabelValues("failed")))
}
