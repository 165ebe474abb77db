package mimic

import (
	"strings"
)

// find returns the first expectation, in registration order, that the
// request satisfies. There is no scoring: an earlier catch-all shadows a
// later specific rule.
func find(expectations []*Expectation, request Request) *Expectation {
	for _, expectation := range expectations {
		if expectation.Match(request) {
			return expectation
		}
	}
	return nil
}

func (e *Expectation) Match(request Request) bool {
	return request.Method == e.Method &&
		e.matchPath(request.Path) &&
		matchQuery(e.Query, request.Query) &&
		matchHeaders(e.Headers, request.Headers) &&
		matchBody(e.Body, request.Body)
}

func (e *Expectation) matchPath(path string) bool {
	if e.pathMatcher == nil {
		return false
	}
	return e.pathMatcher.match(path)
}

func matchQuery(expected, actual map[string]string) bool {
	for key, value := range expected {
		if v, ok := actual[key]; !ok || v != value {
			return false
		}
	}
	return true
}

// matchHeaders compares names without regard to case, values exactly.
func matchHeaders(expected, actual map[string]string) bool {
	for name, value := range expected {
		if v, ok := headerValue(actual, name); !ok || v != value {
			return false
		}
	}
	return true
}

func headerValue(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func matchBody(expected, actual *string) bool {
	if expected == nil {
		return true
	}
	return actual != nil && *actual == *expected
}
