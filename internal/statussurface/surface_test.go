package statussurface

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goby3/mac/mac"
	"github.com/goby3/mac/stats"
)

func TestHandleStatusReturnsTrackerSnapshot(t *testing.T) {
	tracker := stats.NewTracker()
	tracker.RecordCycleChange(30, 3, time.Now())
	tracker.RecordTick(mac.Slot{Src: 1, Type: mac.SlotData}, true, time.Now())

	s := New(Options{MetricsEnabled: true, EventsEnabled: true}, tracker, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	s.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	var snap statusSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.CycleLength != 30 || snap.SlotCount != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.TransmitCount != 1 {
		t.Fatalf("expected transmit count 1, got %d", snap.TransmitCount)
	}
}

func TestSurfaceAsAuditSinkInterface(t *testing.T) {
	var _ mac.AuditSink = New(Options{}, stats.NewTracker(), nil)
}

func TestSurfaceNilTrackerSnapshotIsZeroValue(t *testing.T) {
	s := New(Options{}, nil, nil)
	snap := s.snapshot()
	if snap.TransmitCount != 0 || snap.CycleLength != 0 {
		t.Fatalf("expected zero snapshot for nil tracker, got %+v", snap)
	}
}
