package runstate

import (
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"
)

// Transition describes an accepted state change.
type Transition struct {
	RunID string
	From  State // empty when the run was not tracked before
	To    State
	At    time.Time
}

// Observer is notified of every accepted transition. It runs while the table
// lock is held, so it must not call back into the Table.
type Observer func(Transition)

// Table is a mutex-guarded map from run id to State.
type Table struct {
	mu        sync.Mutex
	states    map[string]State
	observers []Observer
	now       func() time.Time
}

// NewTable creates an empty Table.
func NewTable(observers ...Observer) *Table {
	return &Table{
		states:    make(map[string]State),
		observers: observers,
		now:       time.Now,
	}
}

// Observe registers an additional observer.
func (t *Table) Observe(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Get returns the state for id and whether it is tracked.
func (t *Table) Get(id string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[id]
	return s, ok
}

// Set moves id to next if the transition is allowed. Writing the current
// state again is a no-op.
func (t *Table) Set(id string, next State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.states[id]
	if ok && cur == next {
		return nil
	}
	if !CanTransition(cur, ok, next) {
		return fmt.Errorf("%w: run %q %s -> %s", ErrInvalidTransition, id, displayState(cur, ok), next)
	}
	t.applyLocked(id, cur, next)
	return nil
}

// CompareAndSet moves id from expected to next only if the run is currently
// in expected and the transition is allowed.
func (t *Table) CompareAndSet(id string, expected, next State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.states[id]
	if !ok || cur != expected {
		return false
	}
	if !CanTransition(cur, true, next) {
		return false
	}
	t.applyLocked(id, cur, next)
	return true
}

// Live returns the ids of runs that are QUEUED or RUNNING, sorted.
func (t *Table) Live() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []string
	for id, s := range t.states {
		if s.Live() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// LivenessReport returns the heartbeat liveness payload.
func (t *Table) LivenessReport() map[string]bool {
	ids := t.Live()
	report := make(map[string]bool, len(ids))
	for _, id := range ids {
		report[id] = true
	}
	return report
}

// StopAll moves every QUEUED or RUNNING run to STOPPED and returns their ids.
func (t *Table) StopAll() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stopped []string
	for id, s := range t.states {
		if s.Live() {
			t.applyLocked(id, s, Stopped)
			stopped = append(stopped, id)
		}
	}
	sort.Strings(stopped)
	return stopped
}

// Snapshot returns a copy of the table.
func (t *Table) Snapshot() map[string]State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.states)
}

// Counts returns the number of runs in each state.
func (t *Table) Counts() map[State]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[State]int)
	for _, s := range t.states {
		counts[s]++
	}
	return counts
}

func (t *Table) applyLocked(id string, from, to State) {
	t.states[id] = to
	tr := Transition{RunID: id, From: from, To: to, At: t.now().UTC()}
	for _, o := range t.observers {
		o(tr)
	}
}

func displayState(s State, known bool) string {
	if !known {
		return "<untracked>"
	}
	return string(s)
}
