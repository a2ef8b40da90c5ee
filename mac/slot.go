package mac

import "time"

// SlotType selects whether a slot carries data or triggers a ranging
// exchange.
type SlotType int

const (
	SlotData SlotType = iota
	SlotPing
	SlotRemusLBL
)

// BroadcastID marks a slot with no transmitter (the blank slot in auto
// mode, or a polled destination in centralized mode).
const BroadcastID = 0

// QueryDestination tells the driver to pick the destination at tx time.
const QueryDestination = -1

// Slot is the unit of channel time.
type Slot struct {
	Src           int
	Dest          int
	Rate          int
	Type          SlotType
	SlotSeconds   int
	LastHeardTime time.Time
}

// equalIgnoringHeard reports whether two slots match on every field
// except LastHeardTime, the comparison spec.md defines for add/remove.
func (s Slot) equalIgnoringHeard(o Slot) bool {
	return s.Src == o.Src &&
		s.Dest == o.Dest &&
		s.Rate == o.Rate &&
		s.Type == o.Type &&
		s.SlotSeconds == o.SlotSeconds
}

// slotHandle is a stable reference into the table's slab. It survives
// insertion and removal of other slots, unlike a raw index or pointer
// into a reallocating slice would.
type slotHandle int

const noHandle slotHandle = -1

// slotTable owns Slot values in a slab addressed by handle, plus an
// ordered sequence of handles that defines cycle order. The sequence
// holds back-references only; the slab is sole owner.
type slotTable struct {
	slab     map[slotHandle]Slot
	sequence []slotHandle
	nextID   slotHandle
}

func newSlotTable() *slotTable {
	return &slotTable{
		slab: make(map[slotHandle]Slot),
	}
}

// add inserts a slot and appends its handle to the sequence.
func (t *slotTable) add(s Slot) slotHandle {
	h := t.nextID
	t.nextID++
	t.slab[h] = s
	t.sequence = append(t.sequence, h)
	return h
}

// remove deletes the first slot whose attributes equal s (ignoring
// LastHeardTime). No-op if absent. Returns true if a slot was removed.
func (t *slotTable) remove(s Slot) bool {
	for i, h := range t.sequence {
		slot, ok := t.slab[h]
		if !ok {
			continue
		}
		if slot.equalIgnoringHeard(s) {
			t.removeHandle(i, h)
			return true
		}
	}
	return false
}

// removeAt deletes the slot at sequence position i.
func (t *slotTable) removeAt(i int) {
	if i < 0 || i >= len(t.sequence) {
		return
	}
	t.removeHandle(i, t.sequence[i])
}

func (t *slotTable) removeHandle(seqIndex int, h slotHandle) {
	delete(t.slab, h)
	t.sequence = append(t.sequence[:seqIndex], t.sequence[seqIndex+1:]...)
}

// touch updates LastHeardTime for every slot with the given src.
func (t *slotTable) touch(src int, now time.Time) {
	for h, slot := range t.slab {
		if slot.Src == src {
			slot.LastHeardTime = now
			t.slab[h] = slot
		}
	}
}

func (t *slotTable) contains(src int) bool {
	for _, slot := range t.slab {
		if slot.Src == src {
			return true
		}
	}
	return false
}

func (t *slotTable) get(h slotHandle) (Slot, bool) {
	s, ok := t.slab[h]
	return s, ok
}

func (t *slotTable) set(h slotHandle, s Slot) {
	if _, ok := t.slab[h]; ok {
		t.slab[h] = s
	}
}

func (t *slotTable) len() int {
	return len(t.sequence)
}

// cycleLength sums SlotSeconds over the sequence.
func (t *slotTable) cycleLength() int {
	total := 0
	for _, h := range t.sequence {
		if s, ok := t.slab[h]; ok {
			total += s.SlotSeconds
		}
	}
	return total
}

// cycleSum sums Src over the sequence; used by blank placement.
func (t *slotTable) cycleSum() int {
	total := 0
	for _, h := range t.sequence {
		if s, ok := t.slab[h]; ok {
			total += s.Src
		}
	}
	return total
}

// sortBySrc reorders the sequence by ascending Src. Used only in auto
// mode, where all peers must agree on sequence order (spec.md §9).
func (t *slotTable) sortBySrc() {
	seq := t.sequence
	for i := 1; i < len(seq); i++ {
		h := seq[i]
		src := t.slab[h].Src
		j := i - 1
		for j >= 0 && t.slab[seq[j]].Src > src {
			seq[j+1] = seq[j]
			j--
		}
		seq[j+1] = h
	}
}

// slotAt returns the slot at a sequence position.
func (t *slotTable) slotAt(i int) (Slot, bool) {
	if i < 0 || i >= len(t.sequence) {
		return Slot{}, false
	}
	return t.get(t.sequence[i])
}

// handleAt returns the handle at a sequence position.
func (t *slotTable) handleAt(i int) slotHandle {
	if i < 0 || i >= len(t.sequence) {
		return noHandle
	}
	return t.sequence[i]
}

// indexOf returns the sequence position of a handle, or -1.
func (t *slotTable) indexOf(h slotHandle) int {
	for i, x := range t.sequence {
		if x == h {
			return i
		}
	}
	return -1
}

// unlinkHandle removes a handle from the sequence without touching the
// slab, so the caller can reinsert it elsewhere (blank placement).
func (t *slotTable) unlinkHandle(h slotHandle) {
	i := t.indexOf(h)
	if i < 0 {
		return
	}
	t.sequence = append(t.sequence[:i], t.sequence[i+1:]...)
}

// insertAt inserts a handle into the sequence at position i, clamped to
// [0, len(sequence)].
func (t *slotTable) insertAt(i int, h slotHandle) {
	if i < 0 {
		i = 0
	}
	if i > len(t.sequence) {
		i = len(t.sequence)
	}
	t.sequence = append(t.sequence, noHandle)
	copy(t.sequence[i+1:], t.sequence[i:])
	t.sequence[i] = h
}
