package mimic

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidExpectation = errors.New("invalid expectation")

// ExpectationSpec is what callers register. The response comes from
// Generator when set, otherwise from Responses (a sequence), otherwise from
// Response, defaulting to an empty 200.
type ExpectationSpec struct {
	Method    string              `json:"method" yaml:"method"`
	Path      string              `json:"path" yaml:"path"`
	Query     map[string]string   `json:"query_params,omitempty" yaml:"query_params"`
	Headers   map[string]string   `json:"headers,omitempty" yaml:"headers"`
	Body      *string             `json:"body,omitempty" yaml:"body"`
	Response  *ResponseTemplate   `json:"response,omitempty" yaml:"response"`
	Responses []*ResponseTemplate `json:"responses,omitempty" yaml:"responses"`
	Cycle     bool                `json:"cycle,omitempty" yaml:"cycle"`
	Generator Generator           `json:"-" yaml:"-"`
}

type Expectation struct {
	ID          string              `json:"id"`
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	Query       map[string]string   `json:"query_params,omitempty"`
	Headers     map[string]string   `json:"headers,omitempty"`
	Body        *string             `json:"body,omitempty"`
	Response    *ResponseTemplate   `json:"response,omitempty"`
	Responses   []*ResponseTemplate `json:"responses,omitempty"`
	Cycle       bool                `json:"cycle,omitempty"`
	Conditional string              `json:"conditional,omitempty"`

	pathMatcher pathMatcher
}

func newExpectation(spec ExpectationSpec) (*Expectation, Generator, error) {
	method := strings.ToUpper(strings.TrimSpace(spec.Method))
	if method == "" {
		return nil, nil, errors.Wrap(ErrInvalidExpectation, "no method defined")
	}
	if spec.Path == "" {
		return nil, nil, errors.Wrap(ErrInvalidExpectation, "no path defined")
	}

	matcher, err := compilePath(spec.Path)
	if err != nil {
		log.WithField("path", spec.Path).Warnf("expectation will never match. %s", err.Error())
	}

	expectation := &Expectation{
		ID:          uuid.NewString(),
		Method:      method,
		Path:        spec.Path,
		Query:       copyValues(spec.Query),
		Headers:     copyValues(spec.Headers),
		pathMatcher: matcher,
	}
	if spec.Body != nil {
		body := *spec.Body
		expectation.Body = &body
	}

	generate := spec.Generator
	switch {
	case generate != nil:
		expectation.Conditional = uuid.NewString()
	case len(spec.Responses) > 0:
		for i, response := range spec.Responses {
			if response == nil {
				return nil, nil, errors.Wrapf(ErrInvalidExpectation, "response %d in sequence is empty", i+1)
			}
		}
		expectation.Responses = append([]*ResponseTemplate(nil), spec.Responses...)
		expectation.Cycle = spec.Cycle
		expectation.Conditional = uuid.NewString()
		generate = Sequence(spec.Cycle, expectation.Responses...)
	case spec.Response != nil:
		expectation.Response = spec.Response
	default:
		expectation.Response = NewResponse(http.StatusOK)
	}

	return expectation, generate, nil
}

func copyValues(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = v
	}
	return result
}
