package vbuffer

import (
	"bytes"
	"testing"
)

func TestCopyFromAndSlice(t *testing.T) {
	b := New(100, 10, 0) // 10 blocks, no eviction
	data := bytes.Repeat([]byte{0xAB}, 25)
	b.CopyFrom(data, 5)

	if !b.HasData(5, 30) {
		t.Fatal("expected [5,30) resident")
	}
	if b.HasData(0, 30) {
		t.Fatal("expected [0,5) to be missing")
	}
	got, err := b.Slice(5, 30)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("slice mismatch")
	}
}

func TestSliceFailsWhenNotResident(t *testing.T) {
	b := New(100, 10, 0)
	if _, err := b.Slice(0, 10); err == nil {
		t.Fatal("expected error for non-resident slice")
	}
}

func TestLRUEviction(t *testing.T) {
	// 3 blocks of size 10 over a 100-byte virtual space, only 2 resident at once.
	b := New(100, 10, 2)
	b.CopyFrom([]byte("0123456789"), 0)  // block 0
	b.CopyFrom([]byte("0123456789"), 10) // block 1
	if !b.HasData(0, 20) {
		t.Fatal("expected both blocks 0 and 1 resident")
	}
	b.CopyFrom([]byte("0123456789"), 20) // block 2, evicts LRU (block 0)
	if b.HasData(0, 10) {
		t.Fatal("expected block 0 to be evicted")
	}
	if !b.HasData(10, 30) {
		t.Fatal("expected blocks 1 and 2 resident")
	}
}

func TestPartiallyWrittenBlockResidency(t *testing.T) {
	b := New(100, 50, 0)
	b.CopyFrom([]byte("hello"), 10) // writes [10,15) within block 0 ([0,50))
	if b.HasData(0, 20) {
		t.Fatal("expected [0,20) not fully resident since only [10,15) written")
	}
	if !b.HasData(10, 15) {
		t.Fatal("expected [10,15) resident")
	}
}

func TestRangesWithData(t *testing.T) {
	b := New(100, 10, 0)
	b.CopyFrom([]byte("01234"), 0)
	b.CopyFrom([]byte("01234"), 20)
	ranges := b.RangesWithData()
	if len(ranges) != 2 {
		t.Fatalf("expected 2 disjoint ranges, got %d: %v", len(ranges), ranges)
	}
}
