package mac

import "time"

// positionBlank implements the deterministic blank-slot placement from
// spec.md §4.4, taken from position_blank() in the original libamac
// implementation. Two peers that agree on the current peer set compute
// the same cycleSum and hence the same blankPos, so the blank lands in
// the same place on every participant without any coordination message.
func (m *Manager) positionBlank() {
	if m.blankHandle == noHandle {
		return
	}
	length := m.table.cycleLength()
	blankPos := length - 1
	if (m.sched.cyclesSinceDayStart()%entropy) == (m.table.cycleSum()%entropy) {
		blankPos--
	}
	// spec.md §9 Open Question: cycle_length - (bool) - 1 underflows for
	// cycle_length <= 1. Clamp into the valid sequence range.
	if blankPos < 0 {
		blankPos = 0
	}
	if n := m.table.len(); blankPos > n-1 {
		blankPos = n - 1
	}

	m.table.unlinkHandle(m.blankHandle)
	m.table.insertAt(blankPos, m.blankHandle)
	m.sched.resetCursor()
}

// admitOrTouch implements the inbound-frame side of spec.md §4.4: a new
// src gets a synthesized slot and the sequence is re-sorted; a known
// src just gets its LastHeardTime refreshed.
func (m *Manager) admitOrTouch(src int) {
	now := m.now()
	if !m.table.contains(src) {
		m.logf("discovered id %d", src)
		m.table.add(Slot{
			Src:           src,
			Dest:          QueryDestination,
			Rate:          m.cfg.Rate,
			Type:          SlotData,
			SlotSeconds:   m.cfg.SlotSeconds,
			LastHeardTime: now,
		})
		m.table.sortBySrc()
		if m.audit != nil {
			m.audit.RecordDiscovery(src, now)
		}
		m.cycleSizeChange()
		return
	}
	m.table.touch(src, now)
}

// expireStale evicts every slot whose LastHeardTime is older than
// cfg.ExpireCycles*cycleLength, excluding self and the blank slot.
// Collects candidates in one pass and deletes in a second, per spec.md
// §9's Open Question (the original erases from the map while iterating
// it, which this implementation deliberately avoids).
func (m *Manager) expireStale() bool {
	length := m.table.cycleLength()
	if length <= 0 {
		return false
	}
	cutoff := m.now().Add(-time.Duration(m.cfg.ExpireCycles*length) * time.Second)

	var toRemove []slotHandle
	for _, h := range m.table.sequence {
		s, ok := m.table.get(h)
		if !ok {
			continue
		}
		if s.Src == m.cfg.ModemID || s.Src == BroadcastID {
			continue
		}
		if s.LastHeardTime.Before(cutoff) {
			toRemove = append(toRemove, h)
		}
	}
	if len(toRemove) == 0 {
		return false
	}
	for _, h := range toRemove {
		i := m.table.indexOf(h)
		if i < 0 {
			continue
		}
		src := m.table.slab[h].Src
		m.table.removeAt(i)
		m.logf("removed id %d after not hearing for %d cycles", src, m.cfg.ExpireCycles)
		if m.audit != nil {
			m.audit.RecordEviction(src, m.now())
		}
	}
	return true
}
