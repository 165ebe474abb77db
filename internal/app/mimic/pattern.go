package mimic

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const wildcard = "*"

type pathMatcher interface {
	match(val string) bool
}

type stringPathMatcher struct {
	val string
}

func (m *stringPathMatcher) match(val string) bool {
	return val == m.val
}

type regexPathMatcher struct {
	val *regexp.Regexp
}

func (m *regexPathMatcher) match(val string) bool {
	return m.val.MatchString(val)
}

// neverPathMatcher stands in for a path spec the regex engine refused.
type neverPathMatcher struct{}

func (neverPathMatcher) match(string) bool {
	return false
}

type PatternError struct {
	Spec string
	Err  error
}

func (e *PatternError) Error() string {
	return "unable to compile path pattern '" + e.Spec + "': " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// compilePath turns a path spec into a matcher. Every '*' matches any run of
// characters, '/' included, and the whole path has to match.
func compilePath(spec string) (pathMatcher, error) {
	if !strings.Contains(spec, wildcard) {
		return &stringPathMatcher{val: spec}, nil
	}

	literals := strings.Split(spec, wildcard)
	for i, literal := range literals {
		literals[i] = regexp.QuoteMeta(literal)
	}

	regex, err := regexp.Compile("^" + strings.Join(literals, ".*") + "$")
	if err != nil {
		return neverPathMatcher{}, &PatternError{Spec: spec, Err: errors.Wrap(err, "regex rejected")}
	}
	return &regexPathMatcher{val: regex}, nil
}
