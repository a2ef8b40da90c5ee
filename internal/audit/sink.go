package audit

import (
	"time"

	"github.com/goby3/mac/mac"
)

// Sink composes Store and TickLog into a single mac.AuditSink: discovery,
// eviction, and cycle-size-change events go to Store; tick firings go to
// TickLog. Either half may be nil.
type Sink struct {
	Store   *Store
	TickLog *TickLog
}

// RecordDiscovery implements mac.AuditSink.
func (s Sink) RecordDiscovery(src int, at time.Time) {
	if s.Store != nil {
		s.Store.RecordDiscovery(src, at)
	}
}

// RecordEviction implements mac.AuditSink.
func (s Sink) RecordEviction(src int, at time.Time) {
	if s.Store != nil {
		s.Store.RecordEviction(src, at)
	}
}

// RecordCycleChange implements mac.AuditSink.
func (s Sink) RecordCycleChange(cycleLength, slotCount int, at time.Time) {
	if s.Store != nil {
		s.Store.RecordCycleChange(cycleLength, slotCount, at)
	}
}

// RecordTick implements mac.AuditSink.
func (s Sink) RecordTick(slot mac.Slot, transmitted bool, at time.Time) {
	if s.TickLog != nil {
		s.TickLog.RecordTick(slot.Src, slot.Dest, int(slot.Type), transmitted, at)
	}
}

var _ mac.AuditSink = Sink{}
