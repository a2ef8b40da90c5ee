package dashboard

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/goby3/mac/mac"
	"github.com/goby3/mac/stats"
)

func TestPlainDumperLogsSummary(t *testing.T) {
	tracker := stats.NewTracker()
	tracker.RecordCycleChange(30, 3, time.Now())
	tracker.RecordTick(mac.Slot{Src: 1, Type: mac.SlotData}, true, time.Now())

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	d := NewPlainDumper(tracker, logger, 10*time.Millisecond)
	defer d.Stop()

	time.Sleep(50 * time.Millisecond)
	if !strings.Contains(buf.String(), "mac status:") {
		t.Fatalf("expected at least one status dump, got %q", buf.String())
	}
}

func TestPlainDumperNilTrackerDoesNotPanic(t *testing.T) {
	d := NewPlainDumper(nil, nil, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	d.Stop()
}
