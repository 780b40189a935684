package query

import "time"

// Status is the lifecycle position of a cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a read-only snapshot of one query.
type State struct {
	Key    Key
	Status Status
	Data   any
	Err    error

	// HasData is set once any fetch succeeded; Data survives later failures.
	HasData bool
	// IsLoading is true only for a fetch with nothing cached to show.
	IsLoading bool
	// IsFetching is true for any running fetch, background ones included.
	IsFetching bool
	IsStale    bool
	// Disabled queries never fetch.
	Disabled bool

	UpdatedAt      time.Time
	ErrorUpdatedAt time.Time
}

// Listener receives a snapshot after transitions. Calls happen on a separate
// goroutine in order; a snapshot already superseded when its turn comes is
// skipped.
type Listener func(State)

// DataAs returns s.Data as T.
func DataAs[T any](s State) (T, bool) {
	v, ok := s.Data.(T)
	return v, ok
}
