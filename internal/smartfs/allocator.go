package smartfs

// allocator hands out the sectors of one volume. The pool covers ids from
// the first allocatable sector to the end of the volume; ids below that form
// the reserved header region and are claimed explicitly. Allocation order is
// a pure function of the request order: the lowest free id wins, and every
// handed-out sector is stamped with the next value of a monotonically
// increasing sequence counter. Sectors are never freed.
type allocator struct {
	geom      Geometry
	status    []Status // indexed by SectorID
	committed []*Sector
	nextFree  int
	seq       uint16
}

func newAllocator(g Geometry) *allocator {
	return &allocator{
		geom:     g,
		status:   make([]Status, g.TotalSectors),
		nextFree: int(g.FirstAllocatable),
	}
}

func (a *allocator) track(id SectorID, kind Kind) *Sector {
	s := &Sector{
		ID:       id,
		Kind:     kind,
		Status:   Allocated,
		Sequence: a.seq,
		Next:     NoSector,
	}
	a.seq++
	return s
}

// allocate returns the lowest numbered free pool sector.
func (a *allocator) allocate(kind Kind) (*Sector, error) {
	// Statuses never revert to Free, so the cursor only moves forward.
	for a.nextFree < len(a.status) && a.status[a.nextFree] != Free {
		a.nextFree++
	}
	if a.nextFree >= len(a.status) {
		return nil, &OutOfSpaceError{
			TotalSectors: a.geom.TotalSectors,
			Reserved:     int(a.geom.FirstAllocatable),
		}
	}
	id := SectorID(a.nextFree)
	a.status[id] = Allocated
	return a.track(id, kind), nil
}

// claim hands out a specific sector of the reserved header region.
func (a *allocator) claim(id SectorID, kind Kind) (*Sector, error) {
	if id >= a.geom.FirstAllocatable {
		return nil, invariantf("claim of pool sector %d (reserved region ends at %d)", id, a.geom.FirstAllocatable)
	}
	if got := a.status[id]; got != Free {
		return nil, invariantf("sector %d claimed twice (status %s)", id, got)
	}
	a.status[id] = Allocated
	return a.track(id, kind), nil
}

// commit freezes a sector's content for serialization.
func (a *allocator) commit(s *Sector) error {
	if s.Status != Allocated {
		return invariantf("commit of %s sector %d in status %s", s.Kind, s.ID, s.Status)
	}
	if got := a.status[s.ID]; got != Allocated {
		return invariantf("sector %d tracked as %s but committed as %s", s.ID, got, s.Status)
	}
	s.Status = Committed
	a.status[s.ID] = Committed
	a.committed = append(a.committed, s)
	return nil
}

// leaked returns the id of a sector that was allocated but never committed,
// or NoSector if there is none.
func (a *allocator) leaked() SectorID {
	for id, st := range a.status {
		if st == Allocated {
			return SectorID(id)
		}
	}
	return NoSector
}
