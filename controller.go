package infiniteq

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Config selects the rows a controller pages through.
type Config struct {
	// Table is the target collection. Required.
	Table string
	// Columns is the projection. Empty means all columns.
	Columns []string
	// PageSize is the number of rows per range fetch. Normalized with
	// NormalizePageSize, so zero means DefaultPageSize.
	PageSize int
	// Refine adds filtering and ordering to the base query. Optional.
	Refine Refinement
}

// Query returns the base query for the config with the refinement applied.
func (c Config) Query() Query {
	return NewQuery(c.Table, c.Columns...).Refine(c.Refine)
}

// key identifies the config structurally: two configs producing the same
// query with the same page size are equal even if their refinements are
// distinct function values.
func (c Config) key() (string, error) {
	qKey, err := c.Query().Key()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d:%s", NormalizePageSize(c.PageSize), qKey), nil
}

// Controller accumulates pages of rows fetched from a Source.
//
// At most one fetch is in flight at any time: FetchNextPage is dropped while
// the status is loadingInitial or loadingMore. Responses that belong to a
// discarded configuration are ignored.
type Controller[T any] struct {
	source  Source[T]
	logger  logrus.FieldLogger
	timeout time.Duration

	mu          sync.Mutex
	generation  uint64
	version     uint64
	state       *pageState[T]
	subscribers map[uint64]func(View[T])
	nextSubID   uint64
}

// New returns an idle controller. Call Initialize to issue the first fetch.
func New[T any](source Source[T]) *Controller[T] {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	return &Controller[T]{
		source:      source,
		logger:      discard,
		subscribers: make(map[uint64]func(View[T])),
	}
}

// WithLogger sets the logger used for fetch lifecycle events.
func (c *Controller[T]) WithLogger(logger logrus.FieldLogger) *Controller[T] {
	if logger != nil {
		c.logger = logger
	}

	return c
}

// WithFetchTimeout bounds every range fetch. Zero disables the timeout.
func (c *Controller[T]) WithFetchTimeout(timeout time.Duration) *Controller[T] {
	c.timeout = timeout

	return c
}

// Initialize discards any accumulated state and fetches [0, PageSize).
// The returned error is the fetch error, also available via View().Err.
func (c *Controller[T]) Initialize(ctx context.Context, cfg Config) error {
	c.mu.Lock()
	st := c.resetLocked(cfg)
	r := st.nextRange()

	// The config cannot even be serialized, fail it without a round trip.
	if st.err != nil {
		ff := asFetchFailed(r, st.err)
		st.applyError(ff)
		c.version++
		c.mu.Unlock()
		c.notify()

		return ff
	}
	c.mu.Unlock()
	c.notify()

	return c.fetch(ctx, st.generation, st.query, r)
}

// Reconfigure re-initializes the controller if cfg differs structurally from
// the current configuration. An equal config is a no-op.
func (c *Controller[T]) Reconfigure(ctx context.Context, cfg Config) error {
	key, err := cfg.key()

	c.mu.Lock()
	same := err == nil && c.state != nil && c.state.key == key
	c.mu.Unlock()

	if same {
		return nil
	}

	return c.Initialize(ctx, cfg)
}

// FetchNextPage fetches the range following the rows already received.
// It is silently ignored while a fetch is in flight, when no more rows
// exist or before Initialize.
func (c *Controller[T]) FetchNextPage(ctx context.Context) error {
	c.mu.Lock()
	st := c.state
	if st == nil || st.status.inFlight() || !st.hasMore() {
		c.mu.Unlock()
		return nil
	}

	if st.keyErr != nil {
		ff := asFetchFailed(st.nextRange(), st.keyErr)
		c.mu.Unlock()

		return ff
	}

	st.status = StatusLoadingMore
	c.version++
	gen, q, r := st.generation, st.query, st.nextRange()
	c.mu.Unlock()
	c.notify()

	return c.fetch(ctx, gen, q, r)
}

// View returns a snapshot of the current state.
func (c *Controller[T]) View() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.view(c.version)
}

// Subscribe registers fn to be called after every state transition. fn is
// called outside the controller lock and may call back into the controller.
func (c *Controller[T]) Subscribe(fn func(View[T])) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		delete(c.subscribers, id)
	}
}

// Dispose drops the accumulated state and all subscribers. Outstanding
// fetches complete but their responses are ignored.
func (c *Controller[T]) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.version++
	c.state = nil
	c.subscribers = make(map[uint64]func(View[T]))
}

func (c *Controller[T]) resetLocked(cfg Config) *pageState[T] {
	c.generation++
	c.version++
	c.state = newPageState[T](c.generation, cfg)

	c.logger.WithFields(logrus.Fields{
		"table":      cfg.Table,
		"generation": c.generation,
		"page_size":  c.state.pageSize,
	}).Debug("page state initialized")

	return c.state
}

func (c *Controller[T]) fetch(ctx context.Context, gen uint64, q Query, r Range) error {
	where, _ := q.Filters.ToSQL()
	entry := c.logger.WithFields(logrus.Fields{
		"table":       q.Table,
		"generation":  gen,
		"range_start": r.Start,
		"range_end":   r.End,
	})
	entry.WithField("where", where).Debug("fetching range")

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	page, err := c.source.FetchRange(ctx, q, r)

	c.mu.Lock()
	st := c.state
	if st == nil || st.generation != gen {
		c.mu.Unlock()
		entry.Debug("discarding stale response")

		return nil
	}

	if err != nil {
		ff := asFetchFailed(r, err)
		st.applyError(ff)
		c.version++
		c.mu.Unlock()
		c.notify()

		entry.WithError(err).Warn("range fetch failed")

		return ff
	}

	shrunk := st.applyPage(page)
	c.version++
	items, total := len(st.items), st.total
	c.mu.Unlock()
	c.notify()

	if shrunk {
		entry.WithField("reported_total", page.Total).Warn("empty page before reported total, treating as end of list")
	}

	entry.WithFields(logrus.Fields{
		"rows":  len(page.Rows),
		"items": items,
		"total": total,
	}).Debug("range fetched")

	return nil
}

func (c *Controller[T]) notify() {
	c.mu.Lock()
	v := c.state.view(c.version)
	subscribers := lo.Values(c.subscribers)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(v)
	}
}
