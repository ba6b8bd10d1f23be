package infiniteq

import "fmt"

// Status is the lifecycle state of a controller's page state.
//
//	idle --Initialize--> loadingInitial --success--> success
//	loadingInitial --failure--> error
//	success --FetchNextPage--> loadingMore --success|failure--> success|error
//	error --FetchNextPage--> loadingMore
type Status int

const (
	StatusIdle Status = iota
	StatusLoadingInitial
	StatusLoadingMore
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoadingInitial:
		return "loadingInitial"
	case StatusLoadingMore:
		return "loadingMore"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// inFlight reports whether a fetch is outstanding in this state.
func (s Status) inFlight() bool {
	return s == StatusLoadingInitial || s == StatusLoadingMore
}

// pageState is everything accumulated for one configuration. It is replaced,
// never migrated, when the configuration changes.
type pageState[T any] struct {
	generation uint64
	key        string
	query      Query
	pageSize   int

	items      []T
	rangeEnd   int
	total      int64
	totalKnown bool
	responded  bool
	lastFull   bool

	status Status
	err    error
	// keyErr is set when the config cannot be serialized. It sticks for the
	// lifetime of the state, such a query is never sent to the source.
	keyErr error
}

func newPageState[T any](generation uint64, cfg Config) *pageState[T] {
	key, keyErr := cfg.key()

	return &pageState[T]{
		generation: generation,
		key:        key,
		query:      cfg.Query(),
		pageSize:   NormalizePageSize(cfg.PageSize),
		err:        keyErr,
		keyErr:     keyErr,
		status:     StatusLoadingInitial,
	}
}

// hasMore reports whether more rows may exist past rangeEnd.
func (s *pageState[T]) hasMore() bool {
	switch {
	case s.totalKnown:
		return int64(len(s.items)) < s.total
	case !s.responded:
		return true
	default:
		return s.lastFull
	}
}

func (s *pageState[T]) nextRange() Range {
	return NewRange(0, s.pageSize).Next(s.rangeEnd)
}

// applyPage appends the rows of a successful fetch. An empty page while the
// total still promises more rows means the result set shrank between the
// count and the select; the total is clamped to what was received so the
// same range is not requested forever. It reports whether that happened.
func (s *pageState[T]) applyPage(page Page[T]) (shrunk bool) {
	s.items = append(s.items, page.Rows...)
	s.rangeEnd += len(page.Rows)
	s.responded = true
	s.lastFull = len(page.Rows) >= s.pageSize
	s.totalKnown = page.Total >= 0
	s.total = page.Total
	s.status = StatusSuccess
	s.err = nil

	if len(page.Rows) == 0 && s.totalKnown && int64(len(s.items)) < s.total {
		s.total = int64(len(s.items))
		shrunk = true
	}

	return shrunk
}

func (s *pageState[T]) applyError(err error) {
	s.status = StatusError
	s.err = err
}

// View is a read-only snapshot of a controller for the rendering layer.
type View[T any] struct {
	// Items accumulated across all fetched pages, in server order.
	Items []T
	// Total rows matching the query. Meaningful only if TotalKnown.
	Total      int64
	TotalKnown bool
	HasMore    bool
	Status     Status
	// IsLoading is true during the initial fetch only.
	IsLoading bool
	// IsFetching is true while any fetch is outstanding.
	IsFetching bool
	IsSuccess  bool
	Err        error
	// RangeEnd is the exclusive upper bound of rows already received.
	RangeEnd int
	// NextToken encodes RangeEnd, see DecodeRange.
	NextToken string
	// Version grows with every state transition of the controller.
	Version uint64
}

func (s *pageState[T]) view(version uint64) View[T] {
	if s == nil {
		return View[T]{Status: StatusIdle, Version: version}
	}

	items := make([]T, len(s.items))
	copy(items, s.items)

	return View[T]{
		Items:      items,
		Total:      s.total,
		TotalKnown: s.totalKnown,
		HasMore:    s.hasMore(),
		Status:     s.status,
		IsLoading:  s.status == StatusLoadingInitial,
		IsFetching: s.status.inFlight(),
		IsSuccess:  s.status == StatusSuccess,
		Err:        s.err,
		RangeEnd:   s.rangeEnd,
		NextToken:  s.nextRange().String(),
		Version:    version,
	}
}
