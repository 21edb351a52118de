package domain

import (
	"sort"
	"time"
)

// Time anchors for open-ended schedules. EndOfTime is the sentinel used by
// Recurring billing events whose recurrence has not been closed.
var (
	StartOfTime = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	EndOfTime   = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// Transition is one entry of a time-keyed schedule.
type Transition[V any] struct {
	Time  time.Time
	Value V
}

// TimedTransitions is an ordered map from instant to value with a floor
// lookup: the value as of time T is the value of the most recent transition
// at or before T. The same abstraction backs billing cost schedules, token
// status schedules, and TLD phase schedules.
type TimedTransitions[V any] struct {
	transitions []Transition[V]
}

// NewTimedTransitions builds a schedule from a time→value map. The schedule
// must contain an entry at StartOfTime so every instant has a defined value.
func NewTimedTransitions[V any](m map[time.Time]V) (TimedTransitions[V], error) {
	if _, ok := m[StartOfTime]; !ok {
		return TimedTransitions[V]{}, NewValidationError("transitions", "schedule must include an entry at start of time")
	}
	ts := make([]Transition[V], 0, len(m))
	for t, v := range m {
		ts = append(ts, Transition[V]{Time: t.UTC(), Value: v})
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Time.Before(ts[j].Time) })
	return TimedTransitions[V]{transitions: ts}, nil
}

// ValueAt returns the value as of t (floor lookup).
func (tt TimedTransitions[V]) ValueAt(t time.Time) V {
	i := sort.Search(len(tt.transitions), func(i int) bool {
		return tt.transitions[i].Time.After(t)
	})
	// i is the first transition strictly after t; the governing entry is i-1.
	// The StartOfTime entry guarantees i >= 1.
	return tt.transitions[i-1].Value
}

// All returns the transitions in chronological order.
func (tt TimedTransitions[V]) All() []Transition[V] {
	out := make([]Transition[V], len(tt.transitions))
	copy(out, tt.transitions)
	return out
}

// Len reports the number of transitions.
func (tt TimedTransitions[V]) Len() int { return len(tt.transitions) }

// ValidateOrdered checks every adjacent pair of scheduled values against the
// given legality predicate, rejecting schedules that regress. Used to enforce
// monotonic token status schedules before install.
func ValidateOrdered[V comparable](tt TimedTransitions[V], legal func(from, to V) bool) error {
	for i := 1; i < len(tt.transitions); i++ {
		from := tt.transitions[i-1].Value
		to := tt.transitions[i].Value
		if !legal(from, to) {
			return NewValidationError("transitions", "illegal transition order")
		}
	}
	return nil
}
