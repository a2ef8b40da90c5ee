// Package stats tracks MAC event counters (transmissions, ranging
// requests, discoveries, evictions, cycle-size changes) for display in
// the dashboard/periodic console output and export via Prometheus.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goby3/mac/mac"
)

// Tracker accumulates MAC event counts. Counters live in atomic.Uint64
// so the MAC tick handler's RecordTick/RecordDiscovery/etc calls never
// fight over a mutex with a concurrent dashboard/status-surface reader.
//
// Tracker implements mac.AuditSink directly: attach it with
// mac.WithAuditSink(tracker) to have event counts kept in lockstep with
// the MAC core, no extra plumbing required.
type Tracker struct {
	start atomic.Int64

	transmitCount atomic.Uint64
	rangingCounts [2]atomic.Uint64 // indexed by mac.RangingType
	discoveries   atomic.Uint64
	evictions     atomic.Uint64
	cycleChanges  atomic.Uint64
	ticksObserved atomic.Uint64
	currentLength atomic.Int64
	currentSlots  atomic.Int64
}

// NewTracker creates a new stats tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// RecordDiscovery implements mac.AuditSink.
func (t *Tracker) RecordDiscovery(src int, at time.Time) {
	t.discoveries.Add(1)
}

// RecordEviction implements mac.AuditSink.
func (t *Tracker) RecordEviction(src int, at time.Time) {
	t.evictions.Add(1)
}

// RecordCycleChange implements mac.AuditSink.
func (t *Tracker) RecordCycleChange(cycleLength, slotCount int, at time.Time) {
	t.cycleChanges.Add(1)
	t.currentLength.Store(int64(cycleLength))
	t.currentSlots.Store(int64(slotCount))
}

// RecordTick implements mac.AuditSink.
func (t *Tracker) RecordTick(s mac.Slot, transmitted bool, at time.Time) {
	t.ticksObserved.Add(1)
	if !transmitted {
		return
	}
	switch s.Type {
	case mac.SlotData:
		t.transmitCount.Add(1)
	case mac.SlotPing:
		t.rangingCounts[mac.TwoWayPing].Add(1)
	case mac.SlotRemusLBL:
		t.rangingCounts[mac.RemusLBLRanging].Add(1)
	}
}

// TransmitCount returns the cumulative number of data transmissions.
func (t *Tracker) TransmitCount() uint64 { return t.transmitCount.Load() }

// RangingCount returns the cumulative number of ranging requests of the given type.
func (t *Tracker) RangingCount(kind mac.RangingType) uint64 {
	if kind < 0 || int(kind) >= len(t.rangingCounts) {
		return 0
	}
	return t.rangingCounts[kind].Load()
}

// Discoveries returns the cumulative number of peer discoveries.
func (t *Tracker) Discoveries() uint64 { return t.discoveries.Load() }

// Evictions returns the cumulative number of peer evictions.
func (t *Tracker) Evictions() uint64 { return t.evictions.Load() }

// CycleChanges returns the cumulative number of schedule recomputes.
func (t *Tracker) CycleChanges() uint64 { return t.cycleChanges.Load() }

// TicksObserved returns the cumulative number of Event Surface ticks seen.
func (t *Tracker) TicksObserved() uint64 { return t.ticksObserved.Load() }

// CurrentCycleLength returns the cycle length (seconds) as of the last
// recorded cycle change.
func (t *Tracker) CurrentCycleLength() int64 { return t.currentLength.Load() }

// CurrentSlotCount returns the slot count as of the last recorded cycle change.
func (t *Tracker) CurrentSlotCount() int64 { return t.currentSlots.Load() }

// GetUptime returns how long the tracker has been running.
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// Reset zeroes all counters and restarts the uptime clock.
func (t *Tracker) Reset() {
	t.transmitCount.Store(0)
	for i := range t.rangingCounts {
		t.rangingCounts[i].Store(0)
	}
	t.discoveries.Store(0)
	t.evictions.Store(0)
	t.cycleChanges.Store(0)
	t.ticksObserved.Store(0)
	t.start.Store(time.Now().UnixNano())
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines() []string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Transmissions: %d", t.TransmitCount()))
	lines = append(lines, fmt.Sprintf("Ranging: two_way=%d remus_lbl=%d",
		t.RangingCount(mac.TwoWayPing), t.RangingCount(mac.RemusLBLRanging)))
	lines = append(lines, fmt.Sprintf("Discovery/eviction: %d/%d (cycle changes: %d)",
		t.Discoveries(), t.Evictions(), t.CycleChanges()))
	lines = append(lines, fmt.Sprintf("Cycle: length=%ds slots=%d",
		t.CurrentCycleLength(), t.CurrentSlotCount()))
	return lines
}

// collector adapts Tracker into a prometheus.Collector, exposing the
// same counters the dashboard reads as first-class Prometheus metrics.
type collector struct {
	t *Tracker

	transmitDesc     *prometheus.Desc
	rangingDesc      *prometheus.Desc
	discoveryDesc    *prometheus.Desc
	evictionDesc     *prometheus.Desc
	cycleChangeDesc  *prometheus.Desc
	cycleLengthDesc  *prometheus.Desc
	cycleSlotsDesc   *prometheus.Desc
}

// Collector returns a prometheus.Collector for this Tracker, suitable
// for registration with a prometheus.Registry in internal/statussurface.
func (t *Tracker) Collector() prometheus.Collector {
	return &collector{
		t:               t,
		transmitDesc:    prometheus.NewDesc("mac_transmissions_total", "Total data slot transmissions.", nil, nil),
		rangingDesc:     prometheus.NewDesc("mac_ranging_requests_total", "Total ranging requests by type.", []string{"type"}, nil),
		discoveryDesc:   prometheus.NewDesc("mac_discoveries_total", "Total peer discoveries.", nil, nil),
		evictionDesc:    prometheus.NewDesc("mac_evictions_total", "Total peer evictions.", nil, nil),
		cycleChangeDesc: prometheus.NewDesc("mac_cycle_changes_total", "Total schedule recomputes.", nil, nil),
		cycleLengthDesc: prometheus.NewDesc("mac_cycle_length_seconds", "Current cycle length in seconds.", nil, nil),
		cycleSlotsDesc:  prometheus.NewDesc("mac_cycle_slot_count", "Current number of slots in the cycle.", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.transmitDesc
	ch <- c.rangingDesc
	ch <- c.discoveryDesc
	ch <- c.evictionDesc
	ch <- c.cycleChangeDesc
	ch <- c.cycleLengthDesc
	ch <- c.cycleSlotsDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.transmitDesc, prometheus.CounterValue, float64(c.t.TransmitCount()))
	ch <- prometheus.MustNewConstMetric(c.rangingDesc, prometheus.CounterValue, float64(c.t.RangingCount(mac.TwoWayPing)), "two_way_ping")
	ch <- prometheus.MustNewConstMetric(c.rangingDesc, prometheus.CounterValue, float64(c.t.RangingCount(mac.RemusLBLRanging)), "remus_lbl")
	ch <- prometheus.MustNewConstMetric(c.discoveryDesc, prometheus.CounterValue, float64(c.t.Discoveries()))
	ch <- prometheus.MustNewConstMetric(c.evictionDesc, prometheus.CounterValue, float64(c.t.Evictions()))
	ch <- prometheus.MustNewConstMetric(c.cycleChangeDesc, prometheus.CounterValue, float64(c.t.CycleChanges()))
	ch <- prometheus.MustNewConstMetric(c.cycleLengthDesc, prometheus.GaugeValue, float64(c.t.CurrentCycleLength()))
	ch <- prometheus.MustNewConstMetric(c.cycleSlotsDesc, prometheus.GaugeValue, float64(c.t.CurrentSlotCount()))
}
