package mimic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/PaesslerAG/jsonpath"
	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

const (
	modifierStatus  = "$.status"
	modifierBody    = "$.body."
	modifierHeaders = "$.headers."

	sourceRequest = "request"
)

// Modifier rewrites part of an expectation's response. With Attempt set it
// only fires on that response of the expectation, counting from 1. With
// Source "request" Value is a JSONPath into the incoming request.
type Modifier struct {
	Expectation string `json:"expectation"`
	Path        string `json:"path"`
	Value       string `json:"value"`
	Attempt     *int   `json:"attempt,omitempty"`
	Source      string `json:"source,omitempty"`

	count atomic.Int64
}

func LoadModifier(data []byte) (*Modifier, error) {
	modifier := &Modifier{}
	err := json.Unmarshal(data, modifier)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse modifier from data")
	}
	if err := modifier.validate(); err != nil {
		return nil, err
	}
	return modifier, nil
}

func (m *Modifier) Key() string {
	return strings.Join([]string{m.Expectation, m.Path}, "_")
}

func (m *Modifier) validate() error {
	if m.Expectation == "" {
		return errors.New("no expectation defined for modifier")
	}
	if m.Source != "" && m.Source != sourceRequest {
		return errors.Errorf("unsupported modifier source: %s", m.Source)
	}
	if m.Attempt != nil && *m.Attempt < 1 {
		return errors.Errorf("attempt must be a positive integer, got %d", *m.Attempt)
	}

	switch {
	case m.Path == modifierStatus:
		if m.Source == "" {
			if _, err := parseStatusCode(m.Value); err != nil {
				return err
			}
		}
	case strings.HasPrefix(m.Path, modifierBody) && len(m.Path) > len(modifierBody):
	case strings.HasPrefix(m.Path, modifierHeaders) && len(m.Path) > len(modifierHeaders):
	default:
		return errors.Errorf("invalid path: %s", m.Path)
	}
	return nil
}

func (m *Modifier) apply(res *Response, request Request) error {
	attempt := m.count.Add(1)
	if m.Attempt != nil && int64(*m.Attempt) != attempt {
		return nil
	}

	value, err := m.value(request)
	if err != nil {
		return err
	}

	switch {
	case m.Path == modifierStatus:
		code, err := parseStatusCode(value)
		if err != nil {
			return err
		}
		res.StatusCode = code
	case strings.HasPrefix(m.Path, modifierBody):
		body := res.Body
		if len(body) == 0 {
			body = []byte("{}")
		}
		out, err := sjson.SetBytes(body, m.Path[len(modifierBody):], value)
		if err != nil {
			return errors.Wrapf(err, "unable to modify body at '%s'", m.Path)
		}
		res.Body = out
	case strings.HasPrefix(m.Path, modifierHeaders):
		res.Headers.Set(m.Path[len(modifierHeaders):], value)
	}
	return nil
}

func (m *Modifier) value(request Request) (string, error) {
	if m.Source != sourceRequest {
		return m.Value, nil
	}
	val, err := jsonpath.Get(m.Value, map[string]interface{}(request.document()))
	if err != nil {
		return "", errors.Wrapf(err, "unable to read '%s' from request", m.Value)
	}
	return fmt.Sprintf("%v", val), nil
}

func parseStatusCode(value string) (int, error) {
	code, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid status code '%s'", value)
	}
	if code < 100 || code > 999 {
		return 0, errors.Errorf("status code %d out of range", code)
	}
	return code, nil
}
