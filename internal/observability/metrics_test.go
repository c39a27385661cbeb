package observability

import (
	"testing"
	"time"

	"github.com/danmuck/grailctl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordFrame("aggregator", DirectionIn, "server_sample", 45)
	RecordHandshake("world_model", true)
	RecordState("aggregator", "closed")
	RecordDecodeError("aggregator", "server_sample")
	RecordSample(1)
	RecordSubscribe(12 * time.Millisecond)
	RecordHTTPRequest("grailctl", "GET", "/health", 200, 3*time.Millisecond)
}

func TestRecordFrameCounts(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(frames.WithLabelValues("world_model", DirectionOut, "solver_data"))
	RecordFrame("world_model", DirectionOut, "solver_data", 10)
	RecordFrame("world_model", DirectionOut, "solver_data", 10)
	after := testutil.ToFloat64(frames.WithLabelValues("world_model", DirectionOut, "solver_data"))
	if after-before != 2 {
		t.Fatalf("expected 2 new frames, got %v", after-before)
	}
}
