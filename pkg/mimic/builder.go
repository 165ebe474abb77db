package mimic

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

type expectationSpec struct {
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Query     map[string]string `json:"query_params,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      *string           `json:"body,omitempty"`
	Response  *Response         `json:"response,omitempty"`
	Responses []Response        `json:"responses,omitempty"`
	Cycle     bool              `json:"cycle,omitempty"`
}

// ExpectationBuilder collects the request side of an expectation. Method
// defaults to GET and path to "/".
type ExpectationBuilder struct {
	client *Client
	spec   expectationSpec
}

type ResponseBuilder struct {
	expectation *ExpectationBuilder
	response    Response
}

func (b *ExpectationBuilder) Method(method string) *ExpectationBuilder {
	b.spec.Method = strings.ToUpper(method)
	return b
}

func (b *ExpectationBuilder) Path(path string) *ExpectationBuilder {
	b.spec.Path = path
	return b
}

func (b *ExpectationBuilder) QueryParam(name, value string) *ExpectationBuilder {
	if b.spec.Query == nil {
		b.spec.Query = map[string]string{}
	}
	b.spec.Query[name] = value
	return b
}

func (b *ExpectationBuilder) Header(name, value string) *ExpectationBuilder {
	if b.spec.Headers == nil {
		b.spec.Headers = map[string]string{}
	}
	b.spec.Headers[name] = value
	return b
}

func (b *ExpectationBuilder) Body(body string) *ExpectationBuilder {
	b.spec.Body = &body
	return b
}

func (b *ExpectationBuilder) Respond() *ResponseBuilder {
	return &ResponseBuilder{
		expectation: b,
		response:    NewResponse(http.StatusOK),
	}
}

// Build registers the expectation without a response; it answers 200.
func (b *ExpectationBuilder) Build() (Expectation, error) {
	return b.client.setup(b.spec)
}

func (r *ResponseBuilder) Status(code uint16) *ResponseBuilder {
	r.response.StatusCode = code
	return r
}

func (r *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	r.response = r.response.WithHeader(name, value)
	return r
}

func (r *ResponseBuilder) JSON(body interface{}) *ResponseBuilder {
	r.response = r.response.WithJSONBody(body)
	return r
}

// JSONFile answers with the content of name, read from the server's
// resource directory.
func (r *ResponseBuilder) JSONFile(name string) *ResponseBuilder {
	r.response = r.response.WithJSONFile(name)
	return r
}

// Sequence answers the nth matching call with the nth response. Once the
// responses run out the last one repeats, or with cycle they start over.
func (r *ResponseBuilder) Sequence(cycle bool, responses ...Response) *ExpectationBuilder {
	r.expectation.spec.Responses = responses
	r.expectation.spec.Cycle = cycle
	r.expectation.spec.Response = nil
	return r.expectation
}

func (r *ResponseBuilder) Build() (Expectation, error) {
	response := r.response
	r.expectation.spec.Response = &response
	r.expectation.spec.Responses = nil
	return r.expectation.Build()
}

func (c *Client) setup(spec expectationSpec) (Expectation, error) {
	var expectation Expectation
	if err := c.do(http.MethodPost, "/_setup", spec, &expectation, http.StatusCreated); err != nil {
		return Expectation{}, errors.Wrapf(err, "unable to set up expectation %s %s", spec.Method, spec.Path)
	}
	return expectation, nil
}
