package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordStageLogClosed(t *testing.T) {
	closedBefore := testutil.ToFloat64(StageLogsClosed.WithLabelValues("9001", "true"))
	recordsBefore := testutil.ToFloat64(RecordsProcessed.WithLabelValues("9001"))

	RecordStageLogClosed(9001, true, 5)
	RecordStageLogClosed(9001, true, 0)

	assert.Equal(t, closedBefore+2, testutil.ToFloat64(StageLogsClosed.WithLabelValues("9001", "true")))
	assert.Equal(t, recordsBefore+5, testutil.ToFloat64(RecordsProcessed.WithLabelValues("9001")))
}

func TestRecordPass(t *testing.T) {
	before := testutil.ToFloat64(PassesTotal.WithLabelValues("ingest", "success"))
	RecordPass("ingest", "success", 1.5)
	assert.Equal(t, before+1, testutil.ToFloat64(PassesTotal.WithLabelValues("ingest", "success")))
}
