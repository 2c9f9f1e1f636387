// Package outcome carries the result of an external lookup together with how
// it was obtained. Tool clients never return errors to the orchestrator; they
// return a Live value, a Fallback value from local fixtures, or Unavailable.
package outcome

type Status int

const (
	Live Status = iota
	Fallback
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Live:
		return "live"
	case Fallback:
		return "fallback"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

type Outcome[T any] struct {
	Status Status
	Value  T
}

func LiveOf[T any](v T) Outcome[T] {
	return Outcome[T]{Status: Live, Value: v}
}

func FallbackOf[T any](v T) Outcome[T] {
	return Outcome[T]{Status: Fallback, Value: v}
}

func UnavailableOf[T any]() Outcome[T] {
	return Outcome[T]{Status: Unavailable}
}

// Available reports whether the value came from the live source.
func (o Outcome[T]) Available() bool {
	return o.Status == Live
}
