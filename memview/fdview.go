package memview

import (
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"ptdump/errs"
)

// DefaultCacheCapacity is the minimum bounded LRU capacity this view
// enforces (at least 2,048 entries).
const DefaultCacheCapacity = 2048

// cacheKey is the exact-match LRU key: a request for (0x1000, 0x1000) never
// satisfies a request for (0x1000, 0x200). The walker always asks in
// fixed page-sized units, so exact match is sufficient.
type cacheKey struct {
	gpa  uint64
	size uint64
}

// FDView is the sparse-window, fd-backed Reader. It locates the windows a
// request overlaps via binary search over the sorted RamRange slice using
// sort.Search, since window counts under virtualization can be far larger
// than a bootloader's memory map.
type FDView struct {
	fd      int
	windows []RamRange
	cache   *lru.Cache
	log     *logrus.Entry
}

// NewFDView duplicates hostFD (so the view owns an independent descriptor
// and file offset) and wraps the given sorted, non-overlapping windows. A
// bounded LRU cache of at least DefaultCacheCapacity entries is always
// enabled; a cacheCapacity below that (including <= 0) uses the default.
func NewFDView(hostFD int, windows []RamRange, cacheCapacity int) (*FDView, error) {
	if cacheCapacity < DefaultCacheCapacity {
		cacheCapacity = DefaultCacheCapacity
	}

	dup, err := unix.Dup(hostFD)
	if err != nil {
		return nil, errs.Wrap(errs.ResourceError, "memview", "failed to duplicate host descriptor", err)
	}

	cache, err := lru.New(cacheCapacity)
	if err != nil {
		unix.Close(dup)
		return nil, errs.Wrap(errs.ResourceError, "memview", "failed to create block cache", err)
	}

	return &FDView{
		fd:      dup,
		windows: windows,
		cache:   cache,
		log:     logrus.WithField("component", "memview.FDView"),
	}, nil
}

// Close releases the duplicated host descriptor. It is safe to call once;
// the view must not be used afterwards.
func (v *FDView) Close() error {
	return unix.Close(v.fd)
}

// Clone duplicates the host descriptor again (the clone shares no
// descriptor lifetime with the original) and copies every cached block
// element-wise so the clone starts warm but independent.
func (v *FDView) Clone() (*FDView, error) {
	dup, err := unix.Dup(v.fd)
	if err != nil {
		return nil, errs.Wrap(errs.ResourceError, "memview", "failed to duplicate host descriptor for clone", err)
	}

	capacity := v.cache.Len() + 1
	if capacity < DefaultCacheCapacity {
		capacity = DefaultCacheCapacity
	}
	cache, err := lru.New(capacity)
	if err != nil {
		unix.Close(dup)
		return nil, errs.Wrap(errs.ResourceError, "memview", "failed to create block cache for clone", err)
	}
	for _, key := range v.cache.Keys() {
		if val, ok := v.cache.Peek(key); ok {
			buf := val.([]byte)
			cp := make([]byte, len(buf))
			copy(cp, buf)
			cache.Add(key, cp)
		}
	}

	return &FDView{fd: dup, windows: v.windows, cache: cache, log: v.log}, nil
}

// ReadInto implements Reader.
func (v *FDView) ReadInto(buf []byte, gpa uint64) error {
	n := uint64(len(buf))
	if n == 0 {
		return nil
	}

	key := cacheKey{gpa: gpa, size: n}
	if cached, ok := v.cache.Get(key); ok {
		copy(buf, cached.([]byte))
		return nil
	}

	if err := v.readUncached(buf, gpa, n); err != nil {
		return err
	}

	cp := make([]byte, n)
	copy(cp, buf)
	v.cache.Add(key, cp)
	return nil
}

// Read implements Reader.
func (v *FDView) Read(gpa, n uint64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if err := v.ReadInto(buf, gpa); err != nil {
		return nil, err
	}
	return buf, nil
}

// readUncached walks the contiguous span of windows the request overlaps
// and assembles buf from the host descriptor.
func (v *FDView) readUncached(buf []byte, gpa, n uint64) error {
	cur := gpa
	end := gpa + n
	written := uint64(0)

	idx := v.firstWindowCovering(cur)
	for cur < end {
		if idx >= len(v.windows) || v.windows[idx].GPAStart > cur {
			v.log.WithFields(logrus.Fields{"gpa": gpa, "n": n, "cur": cur}).
				Debug("request falls outside every RAM window")
			return readErr(gpa, n, "request is not fully covered by any RAM window")
		}

		w := v.windows[idx]
		chunk := w.GPAEnd() - cur
		if remaining := end - cur; chunk > remaining {
			chunk = remaining
		}

		hostOff := int64(w.HostVA) + int64(cur-w.GPAStart)
		got, err := unix.Pread(v.fd, buf[written:written+chunk], hostOff)
		if err != nil {
			return errs.Wrap(errs.FailedToReadBlock, "memview", "pread failed", err)
		}
		if uint64(got) != chunk {
			return readErr(gpa, n, "short read from host descriptor")
		}

		written += chunk
		cur += chunk
		idx++
	}

	return nil
}

// firstWindowCovering returns the index of the first window whose GPAEnd()
// is greater than addr, i.e. the first window that could possibly cover
// addr. Windows are sorted ascending by GPAStart and non-overlapping, so
// this single sort.Search over the sorted end-boundaries is sufficient.
func (v *FDView) firstWindowCovering(addr uint64) int {
	return sort.Search(len(v.windows), func(i int) bool {
		return v.windows[i].GPAEnd() > addr
	})
}
