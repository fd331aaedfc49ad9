package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordFrame("127.0.0.1:3333", false, 8*time.Millisecond)
	RecordFrame("127.0.0.1:3333", true, 12*time.Millisecond)
	RecordMemoryRead("127.0.0.1:3333", 768)
	RecordReadError("127.0.0.1:3333", "checksum")
}
