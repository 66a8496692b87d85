// Package overlay layers optimistic boolean-flag mutations over canonical
// item data until the confirming remote call resolves.
package overlay

import (
	"context"
	"sync"
)

// State is the per-id tag. An id absent from the overlay is Canonical, so an
// id can never be optimistically true and false at the same time.
type State int

const (
	Canonical State = iota
	OptimisticTrue
	OptimisticFalse
)

func (s State) String() string {
	switch s {
	case OptimisticTrue:
		return "optimistic_true"
	case OptimisticFalse:
		return "optimistic_false"
	}
	return "canonical"
}

// Overlay holds the optimistic state of one flag for one screen.
type Overlay struct {
	mu     sync.Mutex
	states map[string]State
}

func New() *Overlay {
	return &Overlay{states: make(map[string]State)}
}

func (o *Overlay) SetTrue(id string) {
	o.set(id, OptimisticTrue)
}

func (o *Overlay) SetFalse(id string) {
	o.set(id, OptimisticFalse)
}

func (o *Overlay) Set(id string, value bool) State {
	state := OptimisticFalse
	if value {
		state = OptimisticTrue
	}
	o.set(id, state)
	return state
}

func (o *Overlay) set(id string, state State) {
	o.mu.Lock()
	o.states[id] = state
	o.mu.Unlock()
}

// Revert drops any optimistic state for id, restoring the canonical flag.
func (o *Overlay) Revert(id string) {
	o.mu.Lock()
	delete(o.states, id)
	o.mu.Unlock()
}

// revertIf reverts only when id still holds the state a failed mutation put
// there. A newer mutation on the same id is left alone.
func (o *Overlay) revertIf(id string, placed State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.states[id] != placed {
		return false
	}
	delete(o.states, id)
	return true
}

func (o *Overlay) State(id string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[id]
}

// Effective resolves the flag a screen renders. OptimisticFalse is checked
// first so an unset always wins over a stale canonical true.
func (o *Overlay) Effective(id string, canonical bool) bool {
	switch o.State(id) {
	case OptimisticFalse:
		return false
	case OptimisticTrue:
		return true
	}
	return canonical
}

// Apply runs one optimistic mutation: the flag flips immediately, confirm is
// called, and on failure the flip is reverted and the error returned. Success
// leaves the overlay in place until a canonical refetch agrees with it.
func (o *Overlay) Apply(ctx context.Context, id string, value bool, confirm func(context.Context) error) error {
	placed := o.Set(id, value)
	if err := confirm(ctx); err != nil {
		o.revertIf(id, placed)
		return err
	}
	return nil
}

// Len reports how many ids carry optimistic state.
func (o *Overlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.states)
}

func (o *Overlay) Clear() {
	o.mu.Lock()
	o.states = make(map[string]State)
	o.mu.Unlock()
}
