package smartfs

import (
	"errors"
	"testing"
)

func testGeometry(t *testing.T) Geometry {
	t.Helper()
	g, err := Compute(Config{StorageSize: 64 * 1024, EraseBlockSize: 4096, SectorSize: 1024})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestAllocateLowestFirst(t *testing.T) {
	a := newAllocator(testGeometry(t))
	for i, want := range []SectorID{12, 13, 14} {
		s, err := a.allocate(KindFile)
		if err != nil {
			t.Fatal(err)
		}
		if s.ID != want {
			t.Errorf("allocation %d: got sector %d, want %d", i, s.ID, want)
		}
		if s.Sequence != uint16(i) {
			t.Errorf("allocation %d: got sequence %d, want %d", i, s.Sequence, i)
		}
		if s.Status != Allocated || s.Next != NoSector {
			t.Errorf("allocation %d: got %+v", i, s)
		}
	}
}

func TestAllocateDeterministic(t *testing.T) {
	g := testGeometry(t)
	a, b := newAllocator(g), newAllocator(g)
	for i := 0; i < g.DataSectors(); i++ {
		sa, errA := a.allocate(KindFile)
		sb, errB := b.allocate(KindFile)
		if errA != nil || errB != nil {
			t.Fatalf("allocation %d: %v, %v", i, errA, errB)
		}
		if sa.ID != sb.ID || sa.Sequence != sb.Sequence {
			t.Fatalf("allocation %d diverges: %d/%d vs %d/%d", i, sa.ID, sa.Sequence, sb.ID, sb.Sequence)
		}
	}
}

func TestAllocateExhaustion(t *testing.T) {
	g := testGeometry(t)
	a := newAllocator(g)
	for i := 0; i < g.DataSectors(); i++ {
		s, err := a.allocate(KindFile)
		if err != nil {
			t.Fatalf("allocation %d: %v", i, err)
		}
		if err := a.commit(s); err != nil {
			t.Fatal(err)
		}
	}
	_, err := a.allocate(KindFile)
	var spaceErr *OutOfSpaceError
	if !errors.As(err, &spaceErr) {
		t.Fatalf("got %v, want an OutOfSpaceError", err)
	}
	if spaceErr.TotalSectors != 64 || spaceErr.Reserved != 12 {
		t.Errorf("error fields: got %+v", spaceErr)
	}
}

func TestClaim(t *testing.T) {
	a := newAllocator(testGeometry(t))

	vol, err := a.claim(0, KindVolume)
	if err != nil {
		t.Fatal(err)
	}
	if vol.ID != 0 || vol.Sequence != 0 {
		t.Errorf("volume claim: got %+v", vol)
	}
	root, err := a.claim(3, KindDirectory)
	if err != nil {
		t.Fatal(err)
	}
	if root.Sequence != 1 {
		t.Errorf("root sequence: got %d, want 1", root.Sequence)
	}

	// Claims do not disturb pool allocation.
	s, err := a.allocate(KindFile)
	if err != nil {
		t.Fatal(err)
	}
	if s.ID != 12 || s.Sequence != 2 {
		t.Errorf("first pool sector: got %+v", s)
	}

	var invErr *InternalInvariantError
	if _, err := a.claim(3, KindDirectory); !errors.As(err, &invErr) {
		t.Errorf("double claim: got %v, want an InternalInvariantError", err)
	}
	if _, err := a.claim(12, KindDirectory); !errors.As(err, &invErr) {
		t.Errorf("claim of a pool sector: got %v, want an InternalInvariantError", err)
	}
}

func TestCommitLifecycle(t *testing.T) {
	a := newAllocator(testGeometry(t))
	s, err := a.allocate(KindFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := a.leaked(); got != s.ID {
		t.Errorf("leaked: got %d, want %d", got, s.ID)
	}
	if err := a.commit(s); err != nil {
		t.Fatal(err)
	}
	if got := a.leaked(); got != NoSector {
		t.Errorf("leaked after commit: got %d, want none", got)
	}
	if len(a.committed) != 1 || a.committed[0] != s {
		t.Errorf("committed list: got %d sectors", len(a.committed))
	}

	var invErr *InternalInvariantError
	if err := a.commit(s); !errors.As(err, &invErr) {
		t.Errorf("double commit: got %v, want an InternalInvariantError", err)
	}
	if err := a.commit(&Sector{ID: 20}); !errors.As(err, &invErr) {
		t.Errorf("commit of a free sector: got %v, want an InternalInvariantError", err)
	}
}
