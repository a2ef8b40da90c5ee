package mac

import "time"

// scheduler translates "fire next slot" requests into absolute UTC
// instants and advances the cursor, per spec.md §4.2. The algorithm for
// nextCycleTime and the wrap behavior of advanceFixed/advanceAuto are taken from
// next_cycle_time()/send_poll() in the original libamac implementation.
type scheduler struct {
	table     *slotTable
	cursor    int
	cyclesDay int
	now       func() time.Time
}

func newScheduler(table *slotTable, now func() time.Time) *scheduler {
	if now == nil {
		now = time.Now
	}
	return &scheduler{table: table, now: now}
}

// nextCycleTime returns the UTC instant at which the next full cycle
// begins: midnight + cyclesSinceDayStart*cycleLength, where
// cyclesSinceDayStart = floor(secondsSinceMidnight/cycleLength) + 1.
func (s *scheduler) nextCycleTime() time.Time {
	length := s.table.cycleLength()
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if length <= 0 {
		s.cyclesDay = 0
		return midnight
	}
	sinceMidnight := int(now.Sub(midnight).Seconds())
	s.cyclesDay = sinceMidnight/length + 1
	secsToNext := s.cyclesDay * length
	return midnight.Add(time.Duration(secsToNext) * time.Second)
}

// resetCursor returns the cursor to the sequence start, the coarse
// reset policy spec.md §9 mandates after every sequence mutation.
func (s *scheduler) resetCursor() {
	s.cursor = 0
}

// current returns the slot the cursor currently points to.
func (s *scheduler) current() (Slot, bool) {
	return s.table.slotAt(s.cursor)
}

// advanceResult describes what advanceFixed/advanceAuto did, so callers (the
// Event Surface and Discovery/Expiry) know whether a cycle wrapped.
type advanceResult struct {
	wrapped      bool
	nextFireTime time.Time
}

// advanceFixed moves the cursor one step in fixed/polled mode, wrapping
// to the sequence start on overflow. The next fire time advances by the
// slot that just fired, not a uniform step, since fixed/polled slots
// may carry different durations.
func (s *scheduler) advanceFixed(firedSlot Slot, prevFire time.Time) advanceResult {
	s.cursor++
	wrapped := s.cursor >= s.table.len()
	if wrapped {
		s.cursor = 0
	}
	next := prevFire.Add(time.Duration(firedSlot.SlotSeconds) * time.Second)
	return advanceResult{wrapped: wrapped, nextFireTime: next}
}

// advanceAuto moves the cursor one step in auto mode. Auto mode enforces
// a uniform slot length (cfg.SlotSeconds), so the next fire time always
// advances by that configured duration rather than the fired slot's own
// SlotSeconds.
func (s *scheduler) advanceAuto(slotSeconds int, prevFire time.Time) advanceResult {
	s.cursor++
	wrapped := s.cursor >= s.table.len()
	if wrapped {
		s.cursor = 0
		s.cyclesDay++
	}
	next := prevFire.Add(time.Duration(slotSeconds) * time.Second)
	return advanceResult{wrapped: wrapped, nextFireTime: next}
}

func (s *scheduler) cyclesSinceDayStart() int {
	return s.cyclesDay
}
