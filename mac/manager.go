// Package mac implements the TDMA-style acoustic Medium Access Control
// manager: a rotating slot schedule, peer auto-discovery and expiry,
// and a timer engine that fires slot events synchronized to UTC day
// boundaries. See original_source/src/acomms/libamac/mac_manager.cpp
// for the reference implementation this package is grounded on.
package mac

import (
	"log"
	"time"
)

// State is one of the three MAC Manager lifecycle states.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

// Manager is the MAC state machine described in spec.md §4.5. It is
// single-threaded and cooperative: every exported method is
// non-blocking and returns promptly, and DoWork is the only place work
// happens (spec.md §5). A host driving Manager from more than one
// goroutine must serialize its own calls; Manager holds no internal
// lock.
type Manager struct {
	cfg   Config
	state State

	table       *slotTable
	sched       *scheduler
	tmr         timer
	blankHandle slotHandle

	now func() time.Time

	transmit chan<- TransmitRequest
	ranging  chan<- RangingRequest

	audit  AuditSink
	logger *log.Logger
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithClock injects a clock source, letting tests drive deterministic
// schedules (spec.md §9's "clock source" design note).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAuditSink attaches an optional observer of discovery, eviction,
// cycle-size-change, and tick events.
func WithAuditSink(sink AuditSink) Option {
	return func(m *Manager) { m.audit = sink }
}

// WithLogger attaches a *log.Logger; defaults to log.Default().
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager builds an idle Manager. transmit and ranging are the
// channels the outbound signals are delivered on; the host/driver
// goroutine is expected to receive from both.
func NewManager(transmit chan<- TransmitRequest, ranging chan<- RangingRequest, opts ...Option) *Manager {
	m := &Manager{
		state:    Idle,
		transmit: transmit,
		ranging:  ranging,
		now:      time.Now,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Startup transitions Idle -> Running. A second call while Running is a
// warning, not an error (spec.md §7, testable property #6). An invalid
// config is reported and leaves the Manager in Idle.
func (m *Manager) Startup(cfg Config) error {
	if m.state == Running {
		m.logf("startup() called but already running")
		return nil
	}
	if err := cfg.Validate(); err != nil {
		m.logf("invalid config: %v", err)
		return err
	}

	m.cfg = cfg
	m.table = newSlotTable()
	m.sched = newScheduler(m.table, m.now)
	m.blankHandle = noHandle

	switch cfg.Type {
	case AutoDecentralized:
		m.logf("using the decentralized slotted TDMA MAC scheme with autodiscovery")
		now := m.now()
		m.blankHandle = m.table.add(Slot{
			Src:           BroadcastID,
			Dest:          QueryDestination,
			Rate:          cfg.Rate,
			Type:          SlotData,
			SlotSeconds:   cfg.SlotSeconds,
			LastHeardTime: now,
		})
		m.table.add(Slot{
			Src:           cfg.ModemID,
			Dest:          QueryDestination,
			Rate:          cfg.Rate,
			Type:          SlotData,
			SlotSeconds:   cfg.SlotSeconds,
			LastHeardTime: now,
		})
		m.table.sortBySrc()

	case FixedDecentralized, Polled:
		if cfg.Type == Polled {
			m.logf("using the centralized polling MAC scheme")
		} else {
			m.logf("using the decentralized (fixed) slotted TDMA MAC scheme")
		}
		for _, s := range cfg.Cycle {
			m.table.add(s)
		}
	}

	nextAt := m.sched.nextCycleTime()
	if cfg.Type == AutoDecentralized {
		m.positionBlank()
	}
	m.logf("the MAC TDMA first cycle begins at time: %s", nextAt.Format(time.RFC3339))

	if m.table.len() > 0 {
		m.tmr.restart(nextAt)
	}

	m.state = Running
	return nil
}

// Shutdown transitions to Stopped: clears the slot table, stops the
// timer, and resets the cursor. A second call is a no-op.
func (m *Manager) Shutdown() {
	if m.state == Stopped || m.state == Idle {
		m.state = Stopped
		return
	}
	m.tmr.stop()
	if m.table != nil {
		m.table = newSlotTable()
	}
	if m.sched != nil {
		m.sched.resetCursor()
	}
	m.blankHandle = noHandle
	m.state = Stopped
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// AddSlot inserts a slot and recomputes the schedule (spec.md §4.1).
func (m *Manager) AddSlot(s Slot) int {
	if m.table == nil {
		m.table = newSlotTable()
		m.sched = newScheduler(m.table, m.now)
	}
	h := m.table.add(s)
	m.logf("added new slot src=%d dest=%d rate=%d", s.Src, s.Dest, s.Rate)
	m.cycleSizeChange()
	return int(h)
}

// RemoveSlot removes the first slot equal to s (ignoring
// LastHeardTime). Returns whether a slot was removed.
func (m *Manager) RemoveSlot(s Slot) bool {
	if m.table == nil {
		return false
	}
	removed := m.table.remove(s)
	if !removed {
		return false
	}
	m.logf("removed slot src=%d dest=%d rate=%d", s.Src, s.Dest, s.Rate)
	m.cycleSizeChange()
	if m.table.len() == 0 {
		m.tmr.stop()
	}
	return true
}

// HandleModemAllIncoming is the inbound notification the driver calls
// on every received frame (spec.md §6). Only meaningful in auto mode.
func (m *Manager) HandleModemAllIncoming(src int) {
	if m.state != Running || m.cfg.Type != AutoDecentralized {
		return
	}
	m.admitOrTouch(src)
}

// cycleSizeChange recomputes the schedule after any mutation to the
// slot table, per spec.md §4.4.
func (m *Manager) cycleSizeChange() {
	if m.table == nil || m.sched == nil {
		return
	}
	nextAt := m.recomputeAfterSizeChange()
	if m.table.len() > 0 {
		m.tmr.restart(nextAt)
	}
}

// recomputeAfterSizeChange runs the cycle_size_change() steps from
// spec.md §4.4 in order: recompute the next cycle time first and reset
// the cursor to the sequence start, then reposition the blank slot
// against it, then notify the audit sink.
// positionBlank reads cyclesSinceDayStart, which only nextCycleTime
// refreshes, so the two must not be reordered. Callers restart the
// timer themselves with the returned deadline.
func (m *Manager) recomputeAfterSizeChange() time.Time {
	nextAt := m.sched.nextCycleTime()
	m.sched.resetCursor()
	m.logf("the MAC TDMA next cycle begins at time: %s", nextAt.Format(time.RFC3339))

	if m.cfg.Type == AutoDecentralized && m.table.len() > 1 {
		m.positionBlank()
	}
	if m.audit != nil {
		m.audit.RecordCycleChange(m.table.cycleLength(), m.table.len(), m.now())
	}
	return nextAt
}

// DoWork is the single poll entry point (spec.md §5): it lets the
// internal timer fire if its deadline has passed, driving the Event
// Surface tick handler. Call at any frequency >= the desired timer
// resolution; tens of Hz is typical.
func (m *Manager) DoWork() {
	if m.state != Running || m.table == nil {
		return
	}
	now := m.now()
	if !m.tmr.due(now) {
		return
	}
	m.tick()
}

// tick is the Event Surface tick handler (spec.md §4.5).
func (m *Manager) tick() {
	slot, ok := m.sched.current()
	if !ok {
		m.tmr.stop()
		return
	}

	shouldTransmit := false
	switch m.cfg.Type {
	case AutoDecentralized, FixedDecentralized:
		shouldTransmit = slot.Src == m.cfg.ModemID
	case Polled:
		shouldTransmit = slot.Src != BroadcastID
	}

	if shouldTransmit {
		switch slot.Type {
		case SlotData:
			m.sendTransmit(TransmitRequest{Src: slot.Src, Dest: slot.Dest, Rate: slot.Rate})
		case SlotPing:
			m.sendRanging(RangingRequest{Src: slot.Src, Dest: slot.Dest, Type: TwoWayPing})
		case SlotRemusLBL:
			m.sendRanging(RangingRequest{Src: slot.Src, Dest: slot.Dest, Type: RemusLBLRanging})
		}
	}
	if m.audit != nil {
		m.audit.RecordTick(slot, shouldTransmit, m.now())
	}

	prevFire := m.tmr.at
	var nextAt time.Time
	switch m.cfg.Type {
	case AutoDecentralized:
		result := m.sched.advanceAuto(m.cfg.SlotSeconds, prevFire)
		nextAt = result.nextFireTime
		evicted := m.expireStale()
		switch {
		case evicted:
			// An eviction changes cycle length/sum even without a wrap,
			// so it runs the full cycle_size_change() recompute
			// (spec.md §4.4) rather than just a wrap's reposition.
			nextAt = m.recomputeAfterSizeChange()
		case result.wrapped:
			// A wrap always repositions the blank slot (spec.md §4.5).
			m.positionBlank()
		}
	case FixedDecentralized, Polled:
		result := m.sched.advanceFixed(slot, prevFire)
		nextAt = result.nextFireTime
	}

	m.tmr.restart(nextAt)
}

func (m *Manager) sendTransmit(r TransmitRequest) {
	if m.transmit == nil {
		return
	}
	select {
	case m.transmit <- r:
	default:
		m.logf("transmit signal dropped: consumer channel full")
	}
}

func (m *Manager) sendRanging(r RangingRequest) {
	if m.ranging == nil {
		return
	}
	select {
	case m.ranging <- r:
	default:
		m.logf("ranging signal dropped: consumer channel full")
	}
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Printf("MAC: "+format, args...)
}
