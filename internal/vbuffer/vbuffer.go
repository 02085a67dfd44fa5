// Package vbuffer implements a block-partitioned virtual byte buffer of
// fixed total size with LRU eviction of blocks, used by the cached filelike
// (internal/cachedfile) to hold resident portions of a remote file without
// materializing the whole thing.
package vbuffer

import (
	"container/list"
	"fmt"

	"github.com/gaby/logstream/internal/rangeset"
)

// DefaultBlockSize matches spec.md §4.D's 100 MiB default cache block.
const DefaultBlockSize = 100 * 1024 * 1024

type block struct {
	num       int64
	data      []byte
	resident  []rangeset.Range // sub-ranges within this block that hold real bytes, in block-local coordinates
	lruElem   *list.Element
}

// Buffer is a virtual address space of TotalSize bytes, backed by up to
// NumBlocks resident blocks of BlockSize bytes each, LRU-evicted.
type Buffer struct {
	totalSize int64
	blockSize int64
	numBlocks int

	blocks map[int64]*block
	lru    *list.List // front = most recently used
}

// New constructs a buffer. If blockSize is 0, the whole file fits in one
// block. If numBlocks is 0, it defaults to enough blocks to cover the
// entire file (no eviction).
func New(totalSize int64, blockSize int64, numBlocks int) *Buffer {
	if blockSize <= 0 || blockSize > totalSize {
		blockSize = totalSize
		if blockSize <= 0 {
			blockSize = 1
		}
	}
	if numBlocks <= 0 {
		numBlocks = int((totalSize+blockSize-1)/blockSize) + 1
	}
	return &Buffer{
		totalSize: totalSize,
		blockSize: blockSize,
		numBlocks: numBlocks,
		blocks:    make(map[int64]*block),
		lru:       list.New(),
	}
}

func (b *Buffer) blockNum(offset int64) int64 { return offset / b.blockSize }

func (b *Buffer) blockBounds(num int64) (start, end int64) {
	start = num * b.blockSize
	end = start + b.blockSize
	if end > b.totalSize {
		end = b.totalSize
	}
	return
}

func (b *Buffer) touch(bl *block) {
	if bl.lruElem != nil {
		b.lru.MoveToFront(bl.lruElem)
		return
	}
	bl.lruElem = b.lru.PushFront(bl)
}

func (b *Buffer) evictOne() {
	e := b.lru.Back()
	if e == nil {
		return
	}
	bl := e.Value.(*block)
	b.lru.Remove(e)
	delete(b.blocks, bl.num)
}

func (b *Buffer) getOrCreate(num int64) *block {
	if bl, ok := b.blocks[num]; ok {
		b.touch(bl)
		return bl
	}
	if len(b.blocks) >= b.numBlocks {
		b.evictOne()
	}
	_, end := b.blockBounds(num)
	start := num * b.blockSize
	bl := &block{num: num, data: make([]byte, end-start)}
	b.blocks[num] = bl
	b.touch(bl)
	return bl
}

// CopyFrom writes src into the virtual address space starting at dstOffset.
// It may span multiple blocks; each touched block becomes most-recently-used,
// evicting the least-recently-used resident block if NumBlocks is exceeded.
func (b *Buffer) CopyFrom(src []byte, dstOffset int64) {
	remaining := src
	offset := dstOffset
	for len(remaining) > 0 {
		num := b.blockNum(offset)
		blockStart := num * b.blockSize
		bl := b.getOrCreate(num)
		localStart := offset - blockStart
		n := int64(len(bl.data)) - localStart
		if n > int64(len(remaining)) {
			n = int64(len(remaining))
		}
		copy(bl.data[localStart:localStart+n], remaining[:n])
		bl.resident = rangeset.Normalize(append(bl.resident, rangeset.Range{Start: localStart, End: localStart + n}))
		remaining = remaining[n:]
		offset += n
	}
}

// HasData reports whether every byte in [start, end) is resident.
func (b *Buffer) HasData(start, end int64) bool {
	if end <= start {
		return true
	}
	for num := b.blockNum(start); num*b.blockSize < end; num++ {
		bl, ok := b.blocks[num]
		if !ok {
			return false
		}
		blockStart := num * b.blockSize
		localStart := start - blockStart
		if localStart < 0 {
			localStart = 0
		}
		localEnd := end - blockStart
		if localEnd > int64(len(bl.data)) {
			localEnd = int64(len(bl.data))
		}
		if !rangeset.IsCovered(rangeset.Range{Start: localStart, End: localEnd}, bl.resident) {
			return false
		}
	}
	return true
}

// Slice returns a copy of [start, end). It is an error to call this when
// HasData(start, end) is false.
func (b *Buffer) Slice(start, end int64) ([]byte, error) {
	if end <= start {
		return nil, nil
	}
	if !b.HasData(start, end) {
		return nil, fmt.Errorf("vbuffer: slice [%d,%d) not fully resident", start, end)
	}
	out := make([]byte, end-start)
	offset := start
	for offset < end {
		num := b.blockNum(offset)
		bl := b.blocks[num]
		blockStart := num * b.blockSize
		localStart := offset - blockStart
		localEnd := end - blockStart
		if localEnd > int64(len(bl.data)) {
			localEnd = int64(len(bl.data))
		}
		n := copy(out[offset-start:], bl.data[localStart:localEnd])
		offset += int64(n)
	}
	return out, nil
}

// RangesWithData returns the disjoint, canonical set of byte ranges
// currently resident across the whole virtual address space.
func (b *Buffer) RangesWithData() []rangeset.Range {
	var out []rangeset.Range
	for num, bl := range b.blocks {
		blockStart := num * b.blockSize
		for _, r := range bl.resident {
			out = append(out, rangeset.Range{Start: blockStart + r.Start, End: blockStart + r.End})
		}
	}
	return rangeset.Normalize(out)
}

// TotalSize returns the full virtual address space size.
func (b *Buffer) TotalSize() int64 { return b.totalSize }
