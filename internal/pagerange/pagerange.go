// Package pagerange implements the page-blob range allocator:
// sector-aligned range math and the windowed list_page_ranges
// enumeration that streams allocated extents to a caller callback without
// ever materialising the whole range list for a large blob in memory.
package pagerange

import (
	"context"

	"github.com/elasto/elasto/internal/errz"
)

// SectorSize is the Azure page-blob alignment unit (512 bytes).
const SectorSize = 512

// WindowSize bounds each list_page_ranges request to 1 GiB so
// per-request latency stays bounded regardless of blob size.
const WindowSize = 1 << 30

// Range is one allocated, inclusive [Start, End] extent, sector-aligned.
type Range struct {
	Start int64
	End   int64
}

// Aligned reports whether off and length both satisfy the 512-byte
// sector alignment page put/clear requires.
func Aligned(off, length int64) bool {
	return off%SectorSize == 0 && length%SectorSize == 0
}

// CheckAligned returns an invalid-argument error, before any network IO,
// if off or length is not sector-aligned.
func CheckAligned(off, length int64) error {
	if !Aligned(off, length) {
		return errz.New(errz.KindInvalidArgument, "page range [off=%d len=%d) is not 512-byte sector aligned", off, length)
	}
	return nil
}

// FetchFunc issues one list_page_ranges request for [off, off+length) and
// returns the allocated ranges it found in that window.
type FetchFunc func(ctx context.Context, off, length int64) ([]Range, error)

// Callback receives one allocated range as (start, length), the form
// the user-facing list_ranges callback reports alongside each range.
type Callback func(start, length int64) error

// ListRanges walks [0, totalSize) in WindowSize windows, invoking fetch
// once per window and cb once per allocated range returned, validating
// the non-overlapping/sector-aligned/start<=end invariants
// before the range reaches the caller.
func ListRanges(ctx context.Context, fetch FetchFunc, totalSize int64, cb Callback) error {
	if totalSize < 0 {
		return errz.New(errz.KindInvalidArgument, "list_ranges requires a non-negative total size, got %d", totalSize)
	}
	var prevEnd int64 = -1
	for off := int64(0); off < totalSize; off += WindowSize {
		length := int64(WindowSize)
		if rem := totalSize - off; rem < length {
			length = rem
		}
		ranges, err := fetch(ctx, off, length)
		if err != nil {
			return err
		}
		for _, r := range ranges {
			if r.Start > r.End {
				return errz.New(errz.KindCorruptResponse, "page range start %d exceeds end %d", r.Start, r.End)
			}
			if !Aligned(r.Start, r.End-r.Start+1) {
				return errz.New(errz.KindCorruptResponse, "page range [%d,%d] is not sector aligned", r.Start, r.End)
			}
			if r.Start <= prevEnd {
				return errz.New(errz.KindCorruptResponse, "page ranges overlap or are out of order: previous end %d, next start %d", prevEnd, r.Start)
			}
			prevEnd = r.End
			if err := cb(r.Start, r.End-r.Start+1); err != nil {
				return err
			}
		}
	}
	return nil
}
