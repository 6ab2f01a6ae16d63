package pagerange

import (
	"context"
	"testing"

	"github.com/elasto/elasto/internal/errz"
)

func TestCheckAlignedRejectsUnalignedOffset(t *testing.T) {
	if err := CheckAligned(512, 1024); err != nil {
		t.Fatalf("aligned range rejected: %v", err)
	}
	err := CheckAligned(100, 512)
	if errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("unaligned offset: got %v, want invalid-argument", err)
	}
	err = CheckAligned(0, 513)
	if errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("unaligned length: got %v, want invalid-argument", err)
	}
}

func TestListRangesWindowsLargeBlob(t *testing.T) {
	// 2.5 GiB blob must be fetched in three windows: 1 GiB, 1 GiB, 0.5 GiB.
	total := int64(2*WindowSize + WindowSize/2)
	var windows [][2]int64
	fetch := func(ctx context.Context, off, length int64) ([]Range, error) {
		windows = append(windows, [2]int64{off, length})
		return nil, nil
	}
	if err := ListRanges(context.Background(), fetch, total, func(start, length int64) error { return nil }); err != nil {
		t.Fatalf("ListRanges: %v", err)
	}
	want := [][2]int64{{0, WindowSize}, {WindowSize, WindowSize}, {2 * WindowSize, WindowSize / 2}}
	if len(windows) != len(want) {
		t.Fatalf("got %d windows, want %d: %v", len(windows), len(want), windows)
	}
	for i, w := range want {
		if windows[i] != w {
			t.Errorf("window %d = %v, want %v", i, windows[i], w)
		}
	}
}

func TestListRangesStreamsRangesInOrder(t *testing.T) {
	fetch := func(ctx context.Context, off, length int64) ([]Range, error) {
		return []Range{{0, 511}, {1024, 2047}}, nil
	}
	var got [][2]int64
	err := ListRanges(context.Background(), fetch, 4096, func(start, length int64) error {
		got = append(got, [2]int64{start, length})
		return nil
	})
	if err != nil {
		t.Fatalf("ListRanges: %v", err)
	}
	want := [][2]int64{{0, 512}, {1024, 1024}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ranges = %v, want %v", got, want)
	}
}

func TestListRangesRejectsOverlappingRanges(t *testing.T) {
	fetch := func(ctx context.Context, off, length int64) ([]Range, error) {
		return []Range{{0, 1023}, {512, 1535}}, nil
	}
	err := ListRanges(context.Background(), fetch, 4096, func(start, length int64) error { return nil })
	if errz.KindOf(err) != errz.KindCorruptResponse {
		t.Errorf("overlapping ranges: got %v, want corrupt-response", err)
	}
}

func TestListRangesRejectsInvertedRange(t *testing.T) {
	fetch := func(ctx context.Context, off, length int64) ([]Range, error) {
		return []Range{{1024, 511}}, nil
	}
	err := ListRanges(context.Background(), fetch, 4096, func(start, length int64) error { return nil })
	if errz.KindOf(err) != errz.KindCorruptResponse {
		t.Errorf("inverted range: got %v, want corrupt-response", err)
	}
}

func TestListRangesCallbackErrorAbortsEnumeration(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, off, length int64) ([]Range, error) {
		return []Range{{0, 511}, {512, 1023}}, nil
	}
	stop := errz.New(errz.KindIO, "stop")
	err := ListRanges(context.Background(), fetch, 4096, func(start, length int64) error {
		calls++
		return stop
	})
	if err != stop {
		t.Errorf("got %v, want the callback's error", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times after aborting, want 1", calls)
	}
}
