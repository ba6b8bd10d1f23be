package infiniteq

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Renderers turn controller state into nodes of type N. Every renderer but
// Item is optional.
type Renderers[T, N any] struct {
	// Item renders a single accumulated row.
	Item func(item T, index int) N
	// Empty is rendered after a successful fetch returned no rows at all.
	Empty func() N
	// Loading is rendered while a fetch is in flight.
	Loading func() N
	// End is rendered once every row has been received.
	End func() N
	// Sentinel is rendered after everything else. It is the element whose
	// visibility the Viewport reports.
	Sentinel func() N
}

type observerKey struct {
	fetching bool
	hasMore  bool
}

// Loader renders a controller's rows and requests the next page whenever the
// sentinel scrolls into view.
type Loader[T, N any] struct {
	ctx       context.Context
	ctrl      *Controller[T]
	viewport  Viewport
	renderers Renderers[T, N]
	logger    logrus.FieldLogger

	// mu serializes view changes, including the viewport calls they make.
	mu          sync.Mutex
	version     uint64
	observed    bool
	key         observerKey
	disconnect  func()
	unsubscribe func()

	closed atomic.Bool
}

// NewLoader attaches a loader to ctrl and starts observing the sentinel.
// FetchNextPage is called with ctx.
func NewLoader[T, N any](ctx context.Context, ctrl *Controller[T], viewport Viewport, renderers Renderers[T, N]) *Loader[T, N] {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	l := &Loader[T, N]{
		ctx:       ctx,
		ctrl:      ctrl,
		viewport:  viewport,
		renderers: renderers,
		logger:    discard,
	}

	l.unsubscribe = ctrl.Subscribe(l.onChange)
	l.onChange(ctrl.View())

	return l
}

// WithLogger sets the logger used to report failed page fetches.
func (l *Loader[T, N]) WithLogger(logger logrus.FieldLogger) *Loader[T, N] {
	if logger != nil {
		l.logger = logger
	}

	return l
}

// Render lays out the current state: the items, then the empty, loading and
// end-of-list nodes when they apply, then the sentinel.
func (l *Loader[T, N]) Render() []N {
	v := l.ctrl.View()

	nodes := lo.Map(v.Items, func(item T, i int) N {
		return l.renderers.Item(item, i)
	})

	if v.IsSuccess && len(v.Items) == 0 && l.renderers.Empty != nil {
		nodes = append(nodes, l.renderers.Empty())
	}

	if v.IsFetching && l.renderers.Loading != nil {
		nodes = append(nodes, l.renderers.Loading())
	}

	if !v.HasMore && len(v.Items) > 0 && l.renderers.End != nil {
		nodes = append(nodes, l.renderers.End())
	}

	if l.renderers.Sentinel != nil {
		nodes = append(nodes, l.renderers.Sentinel())
	}

	return nodes
}

// Close stops observing the sentinel and detaches from the controller.
// A fetch already dispatched still completes.
func (l *Loader[T, N]) Close() {
	if l.closed.Swap(true) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disconnect != nil {
		l.disconnect()
		l.disconnect = nil
	}

	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
}

func (l *Loader[T, N]) onChange(v View[T]) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() || (l.observed && v.Version < l.version) {
		return
	}
	l.version = v.Version

	if sizer, ok := l.viewport.(ContentSizer); ok {
		sizer.SetContentRows(len(v.Items))
	}

	key := observerKey{fetching: v.IsFetching, hasMore: v.HasMore}
	if l.observed && key == l.key {
		return
	}

	// The observer captures the inputs it was created for; recreate it.
	if l.disconnect != nil {
		l.disconnect()
	}
	l.key = key
	l.observed = true
	l.disconnect = l.viewport.ObserveSentinel(func() {
		l.onSentinelVisible(key)
	})
}

func (l *Loader[T, N]) onSentinelVisible(key observerKey) {
	if l.closed.Load() || !key.hasMore || key.fetching {
		return
	}

	go func() {
		if err := l.ctrl.FetchNextPage(l.ctx); err != nil {
			l.logger.WithError(err).Warn("next page fetch failed")
		}
	}()
}
