package mac

import (
	"testing"
	"time"
)

func TestSlotTableAddRemoveRoundTrip(t *testing.T) {
	tbl := newSlotTable()
	h1 := tbl.add(Slot{Src: 1, Dest: 2, Rate: 0, SlotSeconds: 5})
	h2 := tbl.add(Slot{Src: 2, Dest: 3, Rate: 0, SlotSeconds: 5})

	if tbl.len() != 2 {
		t.Fatalf("len = %d, want 2", tbl.len())
	}
	if tbl.indexOf(h1) != 0 || tbl.indexOf(h2) != 1 {
		t.Fatalf("unexpected sequence order")
	}

	tbl.removeAt(0)
	if tbl.len() != 1 {
		t.Fatalf("len after remove = %d, want 1", tbl.len())
	}
	if _, ok := tbl.get(h1); ok {
		t.Fatalf("handle h1 still present after removeAt")
	}
	if s, ok := tbl.get(h2); !ok || s.Src != 2 {
		t.Fatalf("h2 lost or corrupted: %+v ok=%v", s, ok)
	}
}

func TestSlotTableRemoveIgnoresLastHeardTime(t *testing.T) {
	tbl := newSlotTable()
	tbl.add(Slot{Src: 1, Dest: 2, Rate: 3, SlotSeconds: 5, LastHeardTime: time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)})

	removed := tbl.remove(Slot{Src: 1, Dest: 2, Rate: 3, SlotSeconds: 5})
	if !removed {
		t.Fatalf("expected slot to match and be removed regardless of LastHeardTime")
	}
	if tbl.len() != 0 {
		t.Fatalf("table not empty after remove")
	}
}

func TestSlotTableSortBySrc(t *testing.T) {
	tbl := newSlotTable()
	tbl.add(Slot{Src: 9, SlotSeconds: 1})
	tbl.add(Slot{Src: 1, SlotSeconds: 1})
	tbl.add(Slot{Src: 5, SlotSeconds: 1})

	tbl.sortBySrc()

	want := []int{1, 5, 9}
	for i, w := range want {
		s, ok := tbl.slotAt(i)
		if !ok || s.Src != w {
			t.Fatalf("position %d: got %+v ok=%v, want Src=%d", i, s, ok, w)
		}
	}
}

func TestSlotTableCycleLengthAndSum(t *testing.T) {
	tbl := newSlotTable()
	tbl.add(Slot{Src: 1, SlotSeconds: 5})
	tbl.add(Slot{Src: 2, SlotSeconds: 7})

	if got := tbl.cycleLength(); got != 12 {
		t.Fatalf("cycleLength = %d, want 12", got)
	}
	if got := tbl.cycleSum(); got != 3 {
		t.Fatalf("cycleSum = %d, want 3", got)
	}
}

func TestSlotTableUnlinkInsertAtMovesHandle(t *testing.T) {
	tbl := newSlotTable()
	h0 := tbl.add(Slot{Src: 0, SlotSeconds: 1})
	tbl.add(Slot{Src: 1, SlotSeconds: 1})
	tbl.add(Slot{Src: 2, SlotSeconds: 1})

	tbl.unlinkHandle(h0)
	if tbl.len() != 2 {
		t.Fatalf("len after unlink = %d, want 2", tbl.len())
	}
	tbl.insertAt(1, h0)
	if tbl.len() != 3 {
		t.Fatalf("len after insertAt = %d, want 3", tbl.len())
	}
	if tbl.handleAt(1) != h0 {
		t.Fatalf("h0 not reinserted at position 1")
	}
}

func TestSlotTableRemoveHandleKeepsOthersStable(t *testing.T) {
	tbl := newSlotTable()
	h1 := tbl.add(Slot{Src: 1, SlotSeconds: 1})
	h2 := tbl.add(Slot{Src: 2, SlotSeconds: 1})
	h3 := tbl.add(Slot{Src: 3, SlotSeconds: 1})

	tbl.removeAt(tbl.indexOf(h2))

	if _, ok := tbl.get(h1); !ok {
		t.Fatalf("h1 should survive removal of h2")
	}
	if _, ok := tbl.get(h3); !ok {
		t.Fatalf("h3 should survive removal of h2")
	}
	if tbl.contains(2) {
		t.Fatalf("src 2 should no longer be present")
	}
}
