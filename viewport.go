package infiniteq

import (
	"sync"

	"github.com/samber/lo"
)

// Viewport notifies when the sentinel placed after the rendered items enters
// the visible region of its scroll container.
type Viewport interface {
	// ObserveSentinel calls onVisible every time the sentinel becomes visible,
	// including immediately if it already is. disconnect stops the
	// notifications.
	ObserveSentinel(onVisible func()) (disconnect func())
}

// ContentSizer is implemented by viewports that need to know how many rows
// precede the sentinel.
type ContentSizer interface {
	SetContentRows(n int)
}

// ScrollViewport is a Viewport for row-based lists such as terminal UIs.
// The sentinel is the row right after the content rows; it counts as visible
// when it falls within the visible rows extended by Margin rows.
type ScrollViewport struct {
	mu          sync.Mutex
	offset      int
	visibleRows int
	contentRows int
	margin      int

	observers map[uint64]*sentinelObserver
	nextID    uint64
}

type sentinelObserver struct {
	onVisible func()
	visible   bool
}

// NewScrollViewport returns a viewport showing visibleRows rows that reports
// the sentinel margin rows before it actually scrolls into view.
func NewScrollViewport(visibleRows, margin int) *ScrollViewport {
	return &ScrollViewport{
		visibleRows: max(visibleRows, 0),
		margin:      max(margin, 0),
		observers:   make(map[uint64]*sentinelObserver),
	}
}

// ObserveSentinel - implements Viewport.
func (v *ScrollViewport) ObserveSentinel(onVisible func()) (disconnect func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	o := &sentinelObserver{onVisible: onVisible}
	v.observers[id] = o

	fire := v.sentinelVisibleLocked()
	o.visible = fire
	v.mu.Unlock()

	if fire {
		onVisible()
	}

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()

		delete(v.observers, id)
	}
}

// SetContentRows - implements ContentSizer.
func (v *ScrollViewport) SetContentRows(n int) {
	v.update(func() {
		v.contentRows = max(n, 0)
		v.offset = min(v.offset, v.maxOffsetLocked())
	})
}

// Resize changes the number of visible rows.
func (v *ScrollViewport) Resize(visibleRows int) {
	v.update(func() {
		v.visibleRows = max(visibleRows, 0)
		v.offset = min(v.offset, v.maxOffsetLocked())
	})
}

// ScrollTo moves the first visible row to offset, clamped to the content.
func (v *ScrollViewport) ScrollTo(offset int) {
	v.update(func() {
		v.offset = lo.Clamp(offset, 0, v.maxOffsetLocked())
	})
}

// ScrollBy moves the first visible row by delta rows.
func (v *ScrollViewport) ScrollBy(delta int) {
	v.update(func() {
		v.offset = lo.Clamp(v.offset+delta, 0, v.maxOffsetLocked())
	})
}

// ScrollToEnd scrolls so that the sentinel row is the last visible one.
func (v *ScrollViewport) ScrollToEnd() {
	v.update(func() {
		v.offset = v.maxOffsetLocked()
	})
}

// Offset returns the index of the first visible row.
func (v *ScrollViewport) Offset() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.offset
}

// VisibleRange returns the start (inclusive) and end (exclusive) indices of
// the content rows that should be rendered.
func (v *ScrollViewport) VisibleRange() (start, end int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	start = v.offset
	end = min(v.offset+v.visibleRows, v.contentRows)

	return start, max(start, end)
}

// SentinelVisible reports whether the sentinel is currently in view.
func (v *ScrollViewport) SentinelVisible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.sentinelVisibleLocked()
}

// update applies fn and notifies observers for which the sentinel just
// became visible. Observers are called outside the lock.
func (v *ScrollViewport) update(fn func()) {
	v.mu.Lock()
	fn()

	visible := v.sentinelVisibleLocked()
	var fire []func()
	for _, o := range v.observers {
		if visible && !o.visible {
			fire = append(fire, o.onVisible)
		}
		o.visible = visible
	}
	v.mu.Unlock()

	for _, onVisible := range fire {
		onVisible()
	}
}

func (v *ScrollViewport) sentinelVisibleLocked() bool {
	if v.visibleRows == 0 {
		return false
	}

	sentinel := v.contentRows
	return sentinel >= v.offset && sentinel < v.offset+v.visibleRows+v.margin
}

// maxOffsetLocked keeps the sentinel row reachable at the bottom of the view.
func (v *ScrollViewport) maxOffsetLocked() int {
	return max(v.contentRows+1-v.visibleRows, 0)
}

var (
	_ Viewport     = (*ScrollViewport)(nil)
	_ ContentSizer = (*ScrollViewport)(nil)
)
