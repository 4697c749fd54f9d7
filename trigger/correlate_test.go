package trigger

import "testing"

func TestRecordEventBitTransition(t *testing.T) {
	// Frame history: a steady 0x00 before the pre-window, then 0x01 right at
	// the event. Exactly one rising bit must be counted.
	ring := []ringEntry{
		{ts: 9.0, id: 0x1B4, data: []byte{0x00}},
		{ts: 9.5, id: 0x1B4, data: []byte{0x00}},
		{ts: 10.0, id: 0x1B4, data: []byte{0x01}},
	}
	c := NewCounters()
	recordEvent(ring, 10.0, c)

	if c.IDHits[0x1B4] != 1 {
		t.Errorf("id hits = %d, want 1", c.IDHits[0x1B4])
	}
	key := BitKey{ID: 0x1B4, Byte: 0, Bit: 0}
	if c.BitHits[key] != 1 {
		t.Errorf("bit hits = %d, want 1", c.BitHits[key])
	}
	if len(c.BitHits) != 1 {
		t.Errorf("recorded %d bit keys, want 1", len(c.BitHits))
	}
}

func TestRecordEventIDCountedOncePerEvent(t *testing.T) {
	// Many frames of one id inside the window still count the id once.
	ring := []ringEntry{
		{ts: 9.0, id: 0x1B4, data: []byte{0x00}},
		{ts: 9.80, id: 0x1B4, data: []byte{0x01}},
		{ts: 9.90, id: 0x1B4, data: []byte{0x01}},
		{ts: 10.0, id: 0x1B4, data: []byte{0x01}},
	}
	c := NewCounters()
	recordEvent(ring, 10.0, c)

	if c.IDHits[0x1B4] != 1 {
		t.Errorf("id hits = %d, want 1 per event", c.IDHits[0x1B4])
	}
	// Every windowed frame compares against the same before snapshot.
	key := BitKey{ID: 0x1B4, Byte: 0, Bit: 0}
	if c.BitHits[key] != 3 {
		t.Errorf("bit hits = %d, want 3", c.BitHits[key])
	}
}

func TestRecordEventIgnoresFramesOutsideWindow(t *testing.T) {
	ring := []ringEntry{
		{ts: 5.0, id: 0x200, data: []byte{0x00}},
		{ts: 8.0, id: 0x200, data: []byte{0xFF}}, // before the pre-window
		{ts: 10.2, id: 0x300, data: []byte{0x01}}, // after the post-window
	}
	c := NewCounters()
	recordEvent(ring, 10.0, c)

	if len(c.IDHits) != 0 {
		t.Errorf("id hits = %v, want none", c.IDHits)
	}
	if len(c.BitHits) != 0 {
		t.Errorf("bit hits = %v, want none", c.BitHits)
	}
}

func TestRecordEventNoBaselineNoBitHits(t *testing.T) {
	// An id first seen inside the window has no before snapshot; it counts
	// as present but yields no bit candidates.
	ring := []ringEntry{
		{ts: 9.99, id: 0x2F8, data: []byte{0xFF}},
	}
	c := NewCounters()
	recordEvent(ring, 10.0, c)

	if c.IDHits[0x2F8] != 1 {
		t.Errorf("id hits = %d, want 1", c.IDHits[0x2F8])
	}
	if len(c.BitHits) != 0 {
		t.Errorf("bit hits = %v, want none", c.BitHits)
	}
}

func TestRecordEventLengthMismatchSkipsBits(t *testing.T) {
	ring := []ringEntry{
		{ts: 9.0, id: 0x1B4, data: []byte{0x00, 0x00}},
		{ts: 10.0, id: 0x1B4, data: []byte{0x01}},
	}
	c := NewCounters()
	recordEvent(ring, 10.0, c)

	if c.IDHits[0x1B4] != 1 {
		t.Errorf("id hits = %d, want 1", c.IDHits[0x1B4])
	}
	if len(c.BitHits) != 0 {
		t.Errorf("bit hits = %v, want none on length mismatch", c.BitHits)
	}
}

func TestRecordEventFallingBitNotCounted(t *testing.T) {
	ring := []ringEntry{
		{ts: 9.0, id: 0x1B4, data: []byte{0x03}},
		{ts: 10.0, id: 0x1B4, data: []byte{0x01}}, // bit 1 falls, bit 0 stays
	}
	c := NewCounters()
	recordEvent(ring, 10.0, c)

	if len(c.BitHits) != 0 {
		t.Errorf("bit hits = %v, want none for falling transitions", c.BitHits)
	}
}

func TestTopIDsOrderAndLimit(t *testing.T) {
	c := NewCounters()
	c.IDHits[0x100] = 3
	c.IDHits[0x200] = 7
	c.IDHits[0x300] = 3

	top := c.topIDs(2)
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	if top[0].ID != 0x200 || top[0].Count != 7 {
		t.Errorf("top[0] = %+v", top[0])
	}
	// Ties resolve by ascending id.
	if top[1].ID != 0x100 {
		t.Errorf("top[1] = %+v, want id 0x100", top[1])
	}

	if all := c.topIDs(-1); len(all) != 3 {
		t.Errorf("topIDs(-1) len = %d, want 3", len(all))
	}
}

func TestTopBitsOrder(t *testing.T) {
	c := NewCounters()
	c.BitHits[BitKey{ID: 0x100, Byte: 1, Bit: 2}] = 5
	c.BitHits[BitKey{ID: 0x100, Byte: 0, Bit: 7}] = 5
	c.BitHits[BitKey{ID: 0x050, Byte: 3, Bit: 0}] = 9

	top := c.topBits(3)
	if top[0].Key.ID != 0x050 {
		t.Errorf("top[0] = %+v, want the 9-hit key first", top[0])
	}
	// Equal counts order by id, byte, bit.
	if top[1].Key.Byte != 0 || top[2].Key.Byte != 1 {
		t.Errorf("tie order = %+v, %+v", top[1], top[2])
	}
}
