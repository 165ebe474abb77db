package mimic

import (
	"sync"
)

// Expectations is the registry. Order of registration is kept both overall
// and per method; nothing is ever removed except by Clear.
type Expectations struct {
	mu         sync.RWMutex
	ordered    []*Expectation
	byMethod   map[string][]*Expectation
	byID       map[string]*Expectation
	generators map[string]*conditional
	modifiers  map[string][]*Modifier
}

func (e *Expectations) Add(expectation *Expectation, generate Generator) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.byMethod == nil {
		e.byMethod = make(map[string][]*Expectation)
		e.byID = make(map[string]*Expectation)
		e.generators = make(map[string]*conditional)
		e.modifiers = make(map[string][]*Modifier)
	}

	e.ordered = append(e.ordered, expectation)
	e.byMethod[expectation.Method] = append(e.byMethod[expectation.Method], expectation)
	e.byID[expectation.ID] = expectation
	if expectation.Conditional != "" && generate != nil {
		e.generators[expectation.Conditional] = newConditional(generate)
	}
}

func (e *Expectations) Load(id string) (*Expectation, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	expectation, ok := e.byID[id]
	return expectation, ok
}

func (e *Expectations) AllByMethod(method string) []*Expectation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Expectation(nil), e.byMethod[method]...)
}

func (e *Expectations) All() []*Expectation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Expectation{}, e.ordered...)
}

func (e *Expectations) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.ordered)
}

// AddModifier replaces any modifier with the same key on the same expectation.
func (e *Expectations) AddModifier(modifier *Modifier) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.byID[modifier.Expectation]; !ok {
		return false
	}

	modifiers := e.modifiers[modifier.Expectation]
	for i, m := range modifiers {
		if m.Key() == modifier.Key() {
			modifiers[i] = modifier
			return true
		}
	}
	e.modifiers[modifier.Expectation] = append(modifiers, modifier)
	return true
}

func (e *Expectations) generator(id string) (*conditional, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.generators[id]
	return c, ok
}

func (e *Expectations) modifiersFor(id string) []*Modifier {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Modifier(nil), e.modifiers[id]...)
}

func (e *Expectations) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ordered = nil
	e.byMethod = nil
	e.byID = nil
	e.generators = nil
	e.modifiers = nil
}
