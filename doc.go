package infiniteq

// Package infiniteq provides infinite-scroll pagination over GORM-backed (or any
// other) range sources.
//
// Overview
//
// A Controller owns the accumulated list for one logical query. It fetches
// fixed-size ranges one at a time, appends them in order and publishes an
// immutable View after every transition. At most one fetch is in flight per
// controller; extra triggers while loading are dropped.
//
// Key concepts
//   - Query: table, projection, conjunctive filters and ordering. Its Key
//     identifies the result set, so an equal query never resets the list.
//   - Config: table, columns, page size and an optional Refinement that
//     narrows the base query.
//   - Range: a half-open [Start, End) window translated to OFFSET/LIMIT.
//   - Source: anything that can return the rows of a Range plus an optional
//     total. GORMSource is the database-backed implementation.
//   - Loader: binds a Controller to a Viewport and asks for the next page when
//     the sentinel row becomes visible.
//
// See examples/basic for a runnable walkthrough.
