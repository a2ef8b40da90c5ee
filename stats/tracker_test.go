package stats

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goby3/mac/mac"
)

func TestTrackerRecordTickCountsTransmitAndRanging(t *testing.T) {
	tr := NewTracker()
	now := time.Now()

	tr.RecordTick(mac.Slot{Type: mac.SlotData}, true, now)
	tr.RecordTick(mac.Slot{Type: mac.SlotPing}, true, now)
	tr.RecordTick(mac.Slot{Type: mac.SlotRemusLBL}, true, now)
	tr.RecordTick(mac.Slot{Type: mac.SlotData}, false, now)

	if tr.TransmitCount() != 1 {
		t.Fatalf("TransmitCount = %d, want 1", tr.TransmitCount())
	}
	if tr.RangingCount(mac.TwoWayPing) != 1 {
		t.Fatalf("RangingCount(TwoWayPing) = %d, want 1", tr.RangingCount(mac.TwoWayPing))
	}
	if tr.RangingCount(mac.RemusLBLRanging) != 1 {
		t.Fatalf("RangingCount(RemusLBLRanging) = %d, want 1", tr.RangingCount(mac.RemusLBLRanging))
	}
	if tr.TicksObserved() != 4 {
		t.Fatalf("TicksObserved = %d, want 4", tr.TicksObserved())
	}
}

func TestTrackerRecordCycleChangeUpdatesGauges(t *testing.T) {
	tr := NewTracker()
	tr.RecordCycleChange(30, 3, time.Now())

	if tr.CurrentCycleLength() != 30 {
		t.Fatalf("CurrentCycleLength = %d, want 30", tr.CurrentCycleLength())
	}
	if tr.CurrentSlotCount() != 3 {
		t.Fatalf("CurrentSlotCount = %d, want 3", tr.CurrentSlotCount())
	}
	if tr.CycleChanges() != 1 {
		t.Fatalf("CycleChanges = %d, want 1", tr.CycleChanges())
	}
}

func TestTrackerResetZeroesCounters(t *testing.T) {
	tr := NewTracker()
	tr.RecordDiscovery(7, time.Now())
	tr.RecordEviction(7, time.Now())
	tr.Reset()

	if tr.Discoveries() != 0 || tr.Evictions() != 0 {
		t.Fatalf("expected counters to reset to zero")
	}
}

func TestTrackerAsAuditSinkInterface(t *testing.T) {
	var _ mac.AuditSink = NewTracker()
}

func TestTrackerCollectorDescribeAndCollect(t *testing.T) {
	tr := NewTracker()
	tr.RecordTick(mac.Slot{Type: mac.SlotData}, true, time.Now())

	col := tr.Collector()

	describeCh := make(chan *prometheus.Desc, 8)
	go func() {
		defer close(describeCh)
		col.Describe(describeCh)
	}()
	descCount := 0
	for range describeCh {
		descCount++
	}
	if descCount == 0 {
		t.Fatalf("expected Describe to emit at least one descriptor")
	}

	metricCh := make(chan prometheus.Metric, 8)
	go func() {
		defer close(metricCh)
		col.Collect(metricCh)
	}()
	metricCount := 0
	for range metricCh {
		metricCount++
	}
	if metricCount == 0 {
		t.Fatalf("expected Collect to emit at least one metric")
	}
}
