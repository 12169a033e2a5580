package fetchlist

import "context"

// StateKind identifies the active variant of a FetchState.
type StateKind int

const (
	// KindIdle means no fetch has been started.
	KindIdle StateKind = iota

	// KindPending means a fetch is in flight.
	KindPending

	// KindReady means the last fetch succeeded.
	KindReady

	// KindFailed means the last fetch failed.
	KindFailed
)

// String returns the string representation of the state kind.
func (k StateKind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindPending:
		return "pending"
	case KindReady:
		return "ready"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RetryFunc starts a new fetch. Failed states carry one bound to the controller.
type RetryFunc func(ctx context.Context)

// FetchState is the published outcome of the fetch pipeline.
// The set of implementations is closed: Idle, Pending, Ready and Failed.
// Use MatchState to handle every variant.
type FetchState interface {
	Kind() StateKind
	fetchState()
}

// Idle is the state before the first fetch.
type Idle struct{}

// Pending is published when a fetch starts.
type Pending struct {
	FetchID string
}

// Ready holds the transformed collection of a successful fetch.
type Ready struct {
	FetchID string
	Groups  GroupedCollection
}

// Failed holds the error that ended a fetch and a way to try again.
type Failed struct {
	FetchID string
	Err     error
	Retry   RetryFunc
}

func (Idle) Kind() StateKind    { return KindIdle }
func (Pending) Kind() StateKind { return KindPending }
func (Ready) Kind() StateKind   { return KindReady }
func (Failed) Kind() StateKind  { return KindFailed }

func (Idle) fetchState()    {}
func (Pending) fetchState() {}
func (Ready) fetchState()   {}
func (Failed) fetchState()  {}

// MatchState calls the handler for the active variant of s and returns its result.
// Every handler is required, so adding a variant breaks every call site at compile time.
func MatchState[T any](
	s FetchState,
	idle func(Idle) T,
	pending func(Pending) T,
	ready func(Ready) T,
	failed func(Failed) T,
) T {
	switch v := s.(type) {
	case Pending:
		return pending(v)
	case Ready:
		return ready(v)
	case Failed:
		return failed(v)
	default:
		return idle(Idle{})
	}
}
