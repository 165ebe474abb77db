package mimic

import (
	"sync/atomic"
)

// Generator builds the response for the n-th matched call, starting at 1.
type Generator func(call uint64) *ResponseTemplate

type conditional struct {
	calls    atomic.Uint64
	generate Generator
}

func newConditional(generate Generator) *conditional {
	return &conditional{generate: generate}
}

// next hands out strictly increasing call numbers, never the same one twice,
// and builds the response for it.
func (c *conditional) next() (uint64, *ResponseTemplate) {
	call := c.calls.Add(1)
	return call, c.generate(call)
}

func (c *conditional) count() uint64 {
	return c.calls.Load()
}

// Sequence answers call n with responses[n-1]. Past the end it keeps
// returning the last response, or starts over when cycle is set.
func Sequence(cycle bool, responses ...*ResponseTemplate) Generator {
	return func(call uint64) *ResponseTemplate {
		if len(responses) == 0 {
			return NewResponse(200)
		}
		if call == 0 {
			call = 1
		}
		last := uint64(len(responses))
		if cycle {
			return responses[(call-1)%last]
		}
		if call > last {
			call = last
		}
		return responses[call-1]
	}
}
